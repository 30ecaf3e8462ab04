// Package pgvector provides a vector store adapter for PostgreSQL with the
// pgvector extension.
//
// Each collection lives in a table named <collection>_vectors holding the
// document id, text, a vector column and JSONB metadata. The extension,
// table and cosine HNSW index are created on first write.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// Config holds configuration for the pgvector adapter.
type Config struct {
	// ConnectionString is a PostgreSQL URL or keyword/value DSN. When empty
	// the standard PG* environment variables apply.
	ConnectionString string

	// Collection names the table as <collection>_vectors.
	Collection string

	// Dimension is the vector size used when creating the table.
	Dimension int

	// Timeout bounds connection attempts (default: driver default).
	Timeout time.Duration
}

// VectorStore stores documents in a pgvector table.
type VectorStore struct {
	pool      *pgxpool.Pool
	table     string
	index     string
	dimension int

	mu      sync.Mutex
	ensured bool
}

// NewVectorStore parses the connection settings and creates a pool. No
// connection is opened until the first operation.
func NewVectorStore(cfg Config) (*VectorStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector connection_string: %w", domain.ErrInvalidConfiguration, err)
	}
	if cfg.Timeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.Timeout
	}
	poolCfg.AfterConnect = registerVector

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pgvector pool: %w", err)
	}

	table, index := tableNames(cfg.Collection)
	return &VectorStore{
		pool:      pool,
		table:     table,
		index:     index,
		dimension: cfg.Dimension,
	}, nil
}

// registerVector installs the extension when missing and registers the
// vector codecs on every new connection.
func registerVector(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enabling pgvector extension: %w", err)
	}
	return pgxvec.RegisterTypes(ctx, conn)
}

// tableNames returns the quoted table and index identifiers for a collection.
func tableNames(collection string) (table, index string) {
	name := collection + "_vectors"
	return pgx.Identifier{name}.Sanitize(), pgx.Identifier{name + "_embedding_idx"}.Sanitize()
}

// AddDocuments upserts documents in one batch.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if doc.Embedding == nil {
			return fmt.Errorf("%w: pgvector: document %s has no embedding", domain.ErrEmbedding, doc.ID)
		}
		if s.dimension > 0 {
			if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(doc.Embedding)); err != nil {
				return err
			}
		}
	}

	if err := s.ensureTable(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}

	upsert := `INSERT INTO ` + s.table + ` (id, text, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`

	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(upsert, doc.ID, doc.Text, pgv.NewVector(doc.Embedding), vectorstore.CloneMetadata(doc.Metadata))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return s.wrap("upserting documents", err)
	}
	return nil
}

// Search returns the topK nearest documents by cosine similarity. Filters
// use JSONB containment, so every key must equal the stored value.
func (s *VectorStore) Search(
	ctx context.Context, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	if s.dimension > 0 {
		if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(embedding)); err != nil {
			return nil, err
		}
	}
	if topK <= 0 {
		return []domain.RetrievedDocument{}, nil
	}

	query, args := s.searchQuery(pgv.NewVector(embedding), topK, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if isUndefinedTable(err) {
		return []domain.RetrievedDocument{}, nil
	}
	if err != nil {
		return nil, s.wrap("searching", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RetrievedDocument, error) {
		var doc domain.RetrievedDocument
		err := row.Scan(&doc.ID, &doc.Text, &doc.Metadata, &doc.Score)
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		return doc, err
	})
	if isUndefinedTable(err) {
		return []domain.RetrievedDocument{}, nil
	}
	if err != nil {
		return nil, s.wrap("reading search results", err)
	}
	return vectorstore.TopK(docs, topK), nil
}

// searchQuery builds the similarity query and its arguments.
func (s *VectorStore) searchQuery(vec pgv.Vector, topK int, filter map[string]any) (string, []any) {
	args := []any{vec, topK}
	where := ""
	if len(filter) > 0 {
		args = append(args, filter)
		where = " WHERE metadata @> $3"
	}
	return `SELECT id, text, metadata, 1 - (embedding <=> $1) AS score FROM ` + s.table +
		where + ` ORDER BY embedding <=> $1 LIMIT $2`, args
}

// DeleteDocuments removes documents by id.
func (s *VectorStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = ANY($1)`, ids)
	if err != nil && !isUndefinedTable(err) {
		return s.wrap("deleting documents", err)
	}
	return nil
}

// DeleteAll truncates the table.
func (s *VectorStore) DeleteAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE TABLE `+s.table)
	if err != nil && !isUndefinedTable(err) {
		return s.wrap("truncating", err)
	}
	return nil
}

// IsAvailable pings the database.
func (s *VectorStore) IsAvailable(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

// Stats reports the number of rows in the table.
func (s *VectorStore) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{Backend: s.Name()}
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&stats.DocumentCount)
	if isUndefinedTable(err) {
		return stats, nil
	}
	if err != nil {
		return stats, s.wrap("counting documents", err)
	}
	return stats, nil
}

// Name returns the backend name.
func (s *VectorStore) Name() string {
	return domain.BackendPGVector
}

// Close closes the pool.
func (s *VectorStore) Close() error {
	s.pool.Close()
	return nil
}

// ensureTable creates the table and index for vectors of the given size,
// or checks the size of an existing table.
func (s *VectorStore) ensureTable(ctx context.Context, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	var existing int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = to_regclass($1::text) AND attname = 'embedding'`,
		s.table).Scan(&existing)
	switch {
	case err == nil:
		if err := vectorstore.CheckDimension(s.Name(), existing, size); err != nil {
			return err
		}
	case errors.Is(err, pgx.ErrNoRows):
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, size)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return s.wrap("creating table", err)
		}
		idx := `CREATE INDEX IF NOT EXISTS ` + s.index + ` ON ` + s.table +
			` USING hnsw (embedding vector_cosine_ops)`
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return s.wrap("creating index", err)
		}
	default:
		return s.wrap("inspecting table", err)
	}

	s.ensured = true
	return nil
}

// wrap marks connection failures as domain.ErrBackendUnavailable. Errors
// reported by the server are returned as they are.
func (s *VectorStore) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("pgvector %s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: pgvector %s: %w", domain.ErrBackendUnavailable, op, err)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/sqlite/migrations"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// DefaultFileName is the database file created under ~/.context-search/data.
const DefaultFileName = "index.db"

// store holds the connection and collection shared by VectorStore and
// TextStore.
type store struct {
	db         *sql.DB
	path       string
	collection string
	backend    string
}

// open opens the database at path, creating parent directories and running
// migrations. An empty path uses ~/.context-search/data/index.db.
func open(path, collection, backend string) (*store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".context-search", "data", DefaultFileName)
	}
	if collection == "" {
		collection = domain.DefaultCollection
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrBackendUnavailable, err)
	}

	s := &store{db: db, path: path, collection: collection, backend: backend}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// migrate runs all pending migrations.
func (s *store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Path returns the database file path.
func (s *store) Path() string {
	return s.path
}

// Ledger returns a chunk ledger stored in the same database.
func (s *store) Ledger() driven.ChunkLedger {
	return &Ledger{db: s.db, collection: s.collection}
}

// dimension returns the collection's recorded dimension, or 0 when nothing
// with an embedding has been stored yet.
func (s *store) dimension(ctx context.Context, q querier) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection dimension: %w", err)
	}
	return dim, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// upsert writes docs and their full-text rows in one transaction. With
// keepEmbeddings false, embeddings are discarded.
func (s *store) upsert(ctx context.Context, docs []domain.IndexedDocument, keepEmbeddings bool) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	dim, err := s.dimension(ctx, tx)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		var blob any // NULL unless an embedding is kept
		if keepEmbeddings && doc.Embedding != nil {
			if dim == 0 {
				dim = len(doc.Embedding)
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO collections (name, dimension) VALUES (?, ?)", s.collection, dim); err != nil {
					return fmt.Errorf("recording collection dimension: %w", err)
				}
			}
			if err := vectorstore.CheckDimension(s.backend, dim, len(doc.Embedding)); err != nil {
				return err
			}
			blob = float32SliceToBytes(doc.Embedding)
		}

		metadata, err := json.Marshal(vectorstore.CloneMetadata(doc.Metadata))
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, text, metadata, embedding, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(collection, id) DO UPDATE SET
				text = excluded.text,
				metadata = excluded.metadata,
				embedding = excluded.embedding,
				updated_at = excluded.updated_at
		`, s.collection, doc.ID, doc.Text, string(metadata), blob); err != nil {
			return fmt.Errorf("saving document: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents_fts WHERE collection = ? AND id = ?", s.collection, doc.ID); err != nil {
			return fmt.Errorf("clearing text index: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents_fts (collection, id, text) VALUES (?, ?, ?)",
			s.collection, doc.ID, doc.Text); err != nil {
			return fmt.Errorf("updating text index: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteDocuments removes documents by id.
func (s *store) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?", s.collection, id); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents_fts WHERE collection = ? AND id = ?", s.collection, id); err != nil {
			return fmt.Errorf("deleting text index row: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteAll empties the collection and forgets its dimension.
func (s *store) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range []string{
		"DELETE FROM documents WHERE collection = ?",
		"DELETE FROM documents_fts WHERE collection = ?",
		"DELETE FROM collections WHERE name = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, s.collection); err != nil {
			return fmt.Errorf("clearing collection: %w", err)
		}
	}
	return tx.Commit()
}

// IsAvailable pings the database.
func (s *store) IsAvailable(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

// Stats reports the document count of the collection.
func (s *store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", s.collection).Scan(&count)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("counting documents: %w", err)
	}
	return domain.StoreStats{DocumentCount: count, Backend: s.backend}, nil
}

// Name returns the backend name.
func (s *store) Name() string {
	return s.backend
}

// Close closes the database connection.
func (s *store) Close() error {
	return s.db.Close()
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a float32 slice to bytes.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts bytes to a float32 slice.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanRetrieved reads id, text, metadata and score columns.
func scanRetrieved(rows *sql.Rows) (domain.RetrievedDocument, error) {
	var doc domain.RetrievedDocument
	var metadata string
	if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &doc.Score); err != nil {
		return doc, fmt.Errorf("scanning document: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
		return doc, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	return doc, nil
}

package pgvector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgv "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// unreachableDSN points at a port nothing listens on.
const unreachableDSN = "postgres://context@127.0.0.1:1/context?sslmode=disable&connect_timeout=1"

func newStore(t *testing.T, dsn string, dimension int) *VectorStore {
	t.Helper()
	store, err := NewVectorStore(Config{
		ConnectionString: dsn,
		Collection:       "test",
		Dimension:        dimension,
		Timeout:          time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTableNames(t *testing.T) {
	table, index := tableNames("context_search")
	assert.Equal(t, `"context_search_vectors"`, table)
	assert.Equal(t, `"context_search_vectors_embedding_idx"`, index)

	table, _ = tableNames(`bad"name`)
	assert.Equal(t, `"bad""name_vectors"`, table)
}

func TestSearchQuery(t *testing.T) {
	store := newStore(t, unreachableDSN, 2)
	vec := pgv.NewVector([]float32{1, 0})

	query, args := store.searchQuery(vec, 3, nil)
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, `FROM "test_vectors" ORDER BY embedding <=> $1 LIMIT $2`)
	assert.Len(t, args, 2)

	filter := map[string]any{"page_type": "blog"}
	query, args = store.searchQuery(vec, 3, filter)
	assert.Contains(t, query, "WHERE metadata @> $3")
	require.Len(t, args, 3)
	assert.Equal(t, filter, args[2])
}

func TestNewVectorStore_InvalidConnectionString(t *testing.T) {
	_, err := NewVectorStore(Config{ConnectionString: "postgres://localhost/db?pool_max_conns=many"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestVectorStore_ValidatesBeforeConnecting(t *testing.T) {
	store := newStore(t, unreachableDSN, 2)
	ctx := context.Background()

	err := store.AddDocuments(ctx, []domain.IndexedDocument{{ID: "a", Text: "a"}})
	assert.ErrorIs(t, err, domain.ErrEmbedding)

	err = store.AddDocuments(ctx, []domain.IndexedDocument{{ID: "a", Text: "a", Embedding: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = store.Search(ctx, []float32{1}, 3, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	results, err := store.Search(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, store.AddDocuments(ctx, nil))
	require.NoError(t, store.DeleteDocuments(ctx, nil))
	assert.Equal(t, "pgvector", store.Name())
}

func TestVectorStore_Unavailable(t *testing.T) {
	store := newStore(t, unreachableDSN, 2)
	ctx := context.Background()

	assert.False(t, store.IsAvailable(ctx))

	err := store.AddDocuments(ctx, []domain.IndexedDocument{{ID: "a", Text: "a", Embedding: []float32{1, 0}}})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, err = store.Stats(ctx)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, isUndefinedTable(&pgconn.PgError{Code: undefinedTable}))
	assert.True(t, isUndefinedTable(fmt.Errorf("query: %w", &pgconn.PgError{Code: undefinedTable})))
	assert.False(t, isUndefinedTable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUndefinedTable(errors.New("relation does not exist")))
	assert.False(t, isUndefinedTable(nil))
}

func TestWrap(t *testing.T) {
	store := newStore(t, unreachableDSN, 2)

	err := store.wrap("searching", &pgconn.PgError{Code: "42601", Message: "syntax error"})
	assert.NotErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "pgvector searching")

	assert.ErrorIs(t, store.wrap("searching", errors.New("dial tcp: refused")), domain.ErrBackendUnavailable)
	assert.Equal(t, context.Canceled, store.wrap("searching", context.Canceled))
}

// TestVectorStore_Postgres runs against a live database with the pgvector
// extension available, e.g.
//
//	CONTEXT_SEARCH_PGVECTOR_URL=postgres://postgres@localhost/postgres go test ./...
func TestVectorStore_Postgres(t *testing.T) {
	dsn := os.Getenv("CONTEXT_SEARCH_PGVECTOR_URL")
	if dsn == "" {
		t.Skip("CONTEXT_SEARCH_PGVECTOR_URL not set")
	}
	store := newStore(t, dsn, 2)
	ctx := context.Background()
	require.True(t, store.IsAvailable(ctx))
	require.NoError(t, store.DeleteAll(ctx))

	require.NoError(t, store.AddDocuments(ctx, []domain.IndexedDocument{
		{ID: "sky", Text: "The sky is blue", Embedding: []float32{1, 0}, Metadata: map[string]any{"page_type": "blog"}},
		{ID: "grass", Text: "Grass is green", Embedding: []float32{0, 1}, Metadata: map[string]any{"page_type": "page"}},
	}))

	results, err := store.Search(ctx, []float32{1, 0.1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sky", results[0].ID)
	assert.Equal(t, "blog", results[0].Metadata["page_type"])
	assert.Greater(t, results[0].Score, 0.9)

	results, err = store.Search(ctx, []float32{1, 0}, 5, map[string]any{"page_type": "page"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "grass", results[0].ID)

	require.NoError(t, store.AddDocuments(ctx, []domain.IndexedDocument{
		{ID: "sky", Text: "The sky is grey", Embedding: []float32{1, 0}},
	}))
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)

	require.NoError(t, store.DeleteDocuments(ctx, []string{"sky", "unknown"}))
	stats, _ = store.Stats(ctx)
	assert.Equal(t, 1, stats.DocumentCount)

	require.NoError(t, store.DeleteAll(ctx))
	stats, _ = store.Stats(ctx)
	assert.Equal(t, 0, stats.DocumentCount)
}

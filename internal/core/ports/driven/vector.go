package driven

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// VectorStore persists indexed documents and ranks them against a query
// vector. Implementations are safe for concurrent use.
type VectorStore interface {
	// AddDocuments upserts documents by id. Embeddings whose length differs
	// from the collection dimension fail with domain.ErrDimensionMismatch.
	AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error

	// Search returns at most topK documents ordered by descending score.
	// A nil filter matches everything; otherwise every key must equal the
	// document's metadata value.
	Search(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]domain.RetrievedDocument, error)

	// DeleteDocuments removes documents by id. Unknown ids are ignored.
	DeleteDocuments(ctx context.Context, ids []string) error

	// DeleteAll empties the collection.
	DeleteAll(ctx context.Context) error

	// IsAvailable is a lightweight liveness probe. It never panics.
	IsAvailable(ctx context.Context) bool

	// Stats reports the document count.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Name identifies the backend in errors and logs.
	Name() string

	// Close releases resources.
	Close() error
}

// TextSearchable is implemented by stores that rank raw query text
// themselves (full-text engines). The retrieval service checks for it once
// and never embeds queries for such stores.
type TextSearchable interface {
	// SearchText returns at most topK documents for the raw query.
	SearchText(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error)

	// RequiresEmbeddingsAtIndexTime reports whether AddDocuments needs
	// vectors. When false, indexing skips the embedder.
	RequiresEmbeddingsAtIndexTime() bool
}

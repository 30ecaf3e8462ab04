package driving

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// RetrievalService finds the documents most relevant to a query and
// forwards indexing operations to the configured store.
type RetrievalService interface {
	// Retrieve returns at most topK documents. topK <= 0 uses the configured
	// default. Failures are *domain.RetrievalError.
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error)

	// RetrieveFiltered is Retrieve restricted by metadata. Stores searched
	// by text ignore the filter.
	RetrieveFiltered(ctx context.Context, query string, topK int, filter map[string]any) ([]domain.RetrievedDocument, error)

	// AddDocuments embeds (when needed) and stores documents.
	AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error

	// DeleteDocuments removes documents by id.
	DeleteDocuments(ctx context.Context, ids []string) error

	// DeleteAll empties the store.
	DeleteAll(ctx context.Context) error

	// Stats reports the store's document count.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// UsesTextSearch reports which retrieval path was selected.
	UsesTextSearch() bool
}

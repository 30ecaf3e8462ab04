package driving

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// IndexService keeps the store in step with the host's content.
// It is called on publish, unpublish and rebuild events.
type IndexService interface {
	// IndexSource replaces every chunk of the source with freshly chunked
	// text. It reports false when PAGE_TYPES excludes the source.
	IndexSource(ctx context.Context, src domain.SourceDocument) (bool, error)

	// RemoveSource deletes every chunk of the source.
	RemoveSource(ctx context.Context, sourceRef string) error

	// Rebuild empties the store and forgets every source.
	Rebuild(ctx context.Context) error

	// Sources lists the indexed source refs.
	Sources(ctx context.Context) ([]string, error)
}

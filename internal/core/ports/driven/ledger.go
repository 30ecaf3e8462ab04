package driven

import "context"

// ChunkLedger records how many chunks each indexed source produced, so the
// chunk ids of a previous version can be recomputed for deletion.
type ChunkLedger interface {
	// ChunkCount returns the recorded count, or zero for an unknown source.
	ChunkCount(ctx context.Context, sourceRef string) (int, error)

	// Record stores the chunk count of a source.
	Record(ctx context.Context, sourceRef string, count int) error

	// Forget drops a source.
	Forget(ctx context.Context, sourceRef string) error

	// Reset drops every source.
	Reset(ctx context.Context) error

	// Sources lists recorded source refs in sorted order.
	Sources(ctx context.Context) ([]string, error)
}

package driven

import "context"

// Embedder turns text into vectors of a fixed dimension.
//
// Implementations include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, mxbai-embed-large)
//   - Hashing (local feature hashing, no model)
type Embedder interface {
	// Embed returns the vector for a single text.
	// Unreachable backends fail with domain.ErrBackendUnavailable,
	// rejected input with domain.ErrEmbedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	// EmbedBatch([]string{t}) equals []([]float32){Embed(t)}.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is constant for a given configuration and may be called
	// before any embedding.
	Dimension() int

	// IsAvailable is a lightweight liveness probe. It never panics.
	IsAvailable(ctx context.Context) bool

	// Name identifies the backend in errors and logs.
	Name() string

	// Close releases resources.
	Close() error
}

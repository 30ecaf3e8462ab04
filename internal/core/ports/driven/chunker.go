package driven

import "github.com/custodia-labs/context-search/internal/core/domain"

// Chunker splits source text into chunks with deterministic ids.
type Chunker interface {
	// Chunk splits text. The same input always yields the same chunks.
	Chunk(sourceRef, text string) ([]domain.Chunk, error)

	// ChunkIDs recomputes the ids of the first count chunks of a source.
	ChunkIDs(sourceRef string, count int) []string
}

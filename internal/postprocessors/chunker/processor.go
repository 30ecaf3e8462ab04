// Package chunker splits source text into fixed-size overlapping windows.
package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// idNamespace scopes chunk ids. Changing it orphans every indexed chunk.
var idNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8f-9a55-2c4d1e7b9f30")

// Split slides a window of size characters across text, advancing by
// size-overlap characters per step. The final chunk may be shorter than
// size. Empty text yields an empty slice. Characters are runes, so
// multi-byte text is never cut inside a code point.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	stride := size - overlap
	chunks := make([]string, 0, len(runes)/stride+1)

	for start := 0; start < len(runes); start += stride {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// ChunkID returns the id of the chunk at index within sourceRef.
func ChunkID(sourceRef string, index int) string {
	return uuid.NewSHA1(idNamespace, []byte(sourceRef+"/"+strconv.Itoa(index))).String()
}

// ChunkIDs returns the ids of the first count chunks of sourceRef.
func ChunkIDs(sourceRef string, count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = ChunkID(sourceRef, i)
	}
	return ids
}

// Processor turns source text into domain chunks.
type Processor struct {
	chunkSize int
	overlap   int
	normalise bool
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithNormalisation toggles whitespace normalisation before splitting.
func WithNormalisation(enabled bool) Option {
	return func(p *Processor) {
		p.normalise = enabled
	}
}

// New creates a chunker processor. Invalid sizes fail with
// domain.ErrInvalidConfiguration.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		normalise: true,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the window size in characters.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the overlap in characters.
func (p *Processor) Overlap() int { return p.overlap }

// Chunk splits text into chunks carrying deterministic ids.
func (p *Processor) Chunk(sourceRef, text string) ([]domain.Chunk, error) {
	if p.normalise {
		text = NormaliseWhitespace(text)
	}

	parts, err := Split(text, p.chunkSize, p.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.Chunk{
			ID:        ChunkID(sourceRef, i),
			Text:      part,
			Index:     i,
			SourceRef: sourceRef,
		}
	}
	return chunks, nil
}

// ChunkIDs returns the ids of the first count chunks of sourceRef.
func (p *Processor) ChunkIDs(sourceRef string, count int) []string {
	return ChunkIDs(sourceRef, count)
}

// NormaliseWhitespace collapses runs of whitespace into one space and trims
// both ends.
func NormaliseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk overlap must be in [0,%d), got %d", domain.ErrInvalidConfiguration, size, overlap)
	}
	return nil
}

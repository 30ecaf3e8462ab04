// Package hashing provides a local embedder based on feature hashing.
//
// Each word is lower-cased, stop words are dropped, and the remaining terms
// are counted into buckets chosen by an FNV-1a hash. Vectors are
// L2-normalised, so the dot product of two vectors is their cosine
// similarity. No model is downloaded and no network is used, which makes
// the embedder suitable for tests, demos and offline indexing.
//
// Empty strings are rejected with domain.ErrEmbedding. Text made only of
// stop words or punctuation embeds to the zero vector.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.Embedder = (*Embedder)(nil)

// DefaultDimensions is used when no dimension is configured.
const DefaultDimensions = 512

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Embedder generates feature-hashed bag-of-words vectors.
type Embedder struct {
	dimensions int
	stopwords  map[string]struct{}
}

// Option configures the embedder.
type Option func(*Embedder)

// WithStopwords toggles stop word removal (default: on).
func WithStopwords(enabled bool) Option {
	return func(e *Embedder) {
		if !enabled {
			e.stopwords = nil
		}
	}
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimensions int, opts ...Option) (*Embedder, error) {
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}
	if dimensions < 0 {
		return nil, fmt.Errorf("%w: hashing: dimension must be positive, got %d", domain.ErrInvalidConfiguration, dimensions)
	}
	e := &Embedder{
		dimensions: dimensions,
		stopwords:  defaultStopwords(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed hashes the terms of text into a normalised vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: hashing: empty text", domain.ErrEmbedding)
	}

	counts := make([]float64, e.dimensions)
	for _, term := range e.terms(text) {
		counts[bucket(term, e.dimensions)]++
	}

	norm := 0.0
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dimensions)
	if norm == 0 {
		return vec, nil
	}
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the embedding vector size.
func (e *Embedder) Dimension() int {
	return e.dimensions
}

// Name returns the backend name.
func (e *Embedder) Name() string {
	return domain.BackendHashing
}

// IsAvailable always reports true.
func (e *Embedder) IsAvailable(context.Context) bool {
	return true
}

// Close releases resources.
func (e *Embedder) Close() error {
	return nil
}

func (e *Embedder) terms(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func bucket(term string, dimensions int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % uint32(dimensions))
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such",
		"into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off",
		"own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "what", "which", "who",
		"whom", "how", "why", "when", "where", "do", "does", "did", "i", "you", "we", "they", "he", "she",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

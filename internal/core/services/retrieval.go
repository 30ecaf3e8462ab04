package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
	"github.com/custodia-labs/context-search/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// DefaultBatchSize is the number of documents embedded per EmbedBatch call.
const DefaultBatchSize = 64

// RetrievalService selects between text search and vector search once, at
// construction, depending on whether the store is TextSearchable.
type RetrievalService struct {
	embedder   driven.Embedder
	store      driven.VectorStore
	textSearch driven.TextSearchable
	topK       int
	batchSize  int
}

// RetrievalOption configures the retrieval service.
type RetrievalOption func(*RetrievalService)

// WithBatchSize sets the indexing batch size. Values below 1 are ignored.
func WithBatchSize(n int) RetrievalOption {
	return func(s *RetrievalService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewRetrievalService creates a retrieval service. topK is the default used
// when callers pass topK <= 0.
func NewRetrievalService(
	embedder driven.Embedder,
	store driven.VectorStore,
	topK int,
	opts ...RetrievalOption,
) *RetrievalService {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	s := &RetrievalService{
		embedder:  embedder,
		store:     store,
		topK:      topK,
		batchSize: DefaultBatchSize,
	}
	if ts, ok := store.(driven.TextSearchable); ok {
		s.textSearch = ts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UsesTextSearch reports whether queries go to the store as raw text.
func (s *RetrievalService) UsesTextSearch() bool {
	return s.textSearch != nil
}

// Retrieve returns the documents most relevant to query.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	return s.RetrieveFiltered(ctx, query, topK, nil)
}

// RetrieveFiltered returns the documents most relevant to query whose
// metadata matches filter. The text path ignores the filter.
func (s *RetrievalService) RetrieveFiltered(
	ctx context.Context, query string, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	logger.Section("Retrieval")
	defer logger.Timed("retrieval")()

	if topK <= 0 {
		topK = s.topK
	}
	logger.Debug("Query: %q, top_k: %d, store: %s", query, topK, s.store.Name())

	var (
		docs []domain.RetrievedDocument
		err  error
	)
	if s.textSearch != nil {
		if len(filter) > 0 {
			logger.Warn("Text search ignores filter %v", filter)
		}
		logger.Debug("Executing text search")
		docs, err = s.textSearch.SearchText(ctx, query, topK)
		if err != nil {
			return nil, &domain.RetrievalError{Cause: domain.CauseSearch, Backend: s.store.Name(), Err: err}
		}
	} else {
		logger.Debug("Executing vector search via %s", s.embedder.Name())
		embedding, embedErr := s.embedder.Embed(ctx, query)
		if embedErr != nil {
			return nil, &domain.RetrievalError{Cause: domain.CauseEmbedding, Backend: s.embedder.Name(), Err: embedErr}
		}
		docs, err = s.store.Search(ctx, embedding, topK, filter)
		if err != nil {
			return nil, &domain.RetrievalError{Cause: domain.CauseSearch, Backend: s.store.Name(), Err: err}
		}
	}

	if docs == nil {
		docs = []domain.RetrievedDocument{}
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}
	logger.Debug("Retrieved %d documents", len(docs))
	return docs, nil
}

// AddDocuments embeds documents lacking a vector in batches and stores them.
// Embedding is skipped when the store searches text and does not need
// vectors. The caller's slice is not modified.
func (s *RetrievalService) AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	needsEmbeddings := s.textSearch == nil || s.textSearch.RequiresEmbeddingsAtIndexTime()
	logger.Debug("Adding %d documents (embed=%t, batch=%d)", len(docs), needsEmbeddings, s.batchSize)

	for start := 0; start < len(docs); start += s.batchSize {
		batch := slices.Clone(docs[start:min(start+s.batchSize, len(docs))])

		if needsEmbeddings {
			if err := s.embedBatch(ctx, batch); err != nil {
				return fmt.Errorf("embed documents %d-%d: %w", start, start+len(batch)-1, err)
			}
		}

		if err := s.store.AddDocuments(ctx, batch); err != nil {
			return fmt.Errorf("add documents to %s: %w", s.store.Name(), err)
		}
	}
	return nil
}

func (s *RetrievalService) embedBatch(ctx context.Context, batch []domain.IndexedDocument) error {
	var (
		texts []string
		slots []int
	)
	for i, doc := range batch {
		if doc.Embedding == nil {
			texts = append(texts, doc.Text)
			slots = append(slots, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: %s returned %d vectors for %d texts",
			domain.ErrEmbedding, s.embedder.Name(), len(vectors), len(texts))
	}
	for j, i := range slots {
		batch[i].Embedding = vectors[j]
	}
	return nil
}

// DeleteDocuments removes documents by id.
func (s *RetrievalService) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.DeleteDocuments(ctx, ids); err != nil {
		return fmt.Errorf("delete documents from %s: %w", s.store.Name(), err)
	}
	return nil
}

// DeleteAll empties the store.
func (s *RetrievalService) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all from %s: %w", s.store.Name(), err)
	}
	return nil
}

// Stats reports the store's document count.
func (s *RetrievalService) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("stats from %s: %w", s.store.Name(), err)
	}
	return stats, nil
}

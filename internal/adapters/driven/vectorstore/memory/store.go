// Package memory provides in-memory implementations of the vector store and
// chunk ledger ports. Contents do not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore ranks documents by brute-force cosine similarity.
type VectorStore struct {
	mu        sync.RWMutex
	dimension int
	documents map[string]domain.IndexedDocument
}

// NewVectorStore creates an empty store. A zero dimension adopts the length
// of the first embedding added.
func NewVectorStore(dimension int) *VectorStore {
	return &VectorStore{
		dimension: dimension,
		documents: make(map[string]domain.IndexedDocument),
	}
}

// AddDocuments upserts documents by id.
func (s *VectorStore) AddDocuments(_ context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, doc := range docs {
		if doc.Embedding == nil {
			return domain.ErrEmbedding
		}
		if dim == 0 {
			dim = len(doc.Embedding)
		}
		if err := vectorstore.CheckDimension(s.Name(), dim, len(doc.Embedding)); err != nil {
			return err
		}
	}
	s.dimension = dim

	for _, doc := range docs {
		doc.Metadata = vectorstore.CloneMetadata(doc.Metadata)
		doc.Embedding = append([]float32(nil), doc.Embedding...)
		s.documents[doc.ID] = doc
	}
	return nil
}

// Search returns the topK documents closest to embedding.
func (s *VectorStore) Search(
	_ context.Context, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.documents) == 0 {
		return []domain.RetrievedDocument{}, nil
	}
	if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(embedding)); err != nil {
		return nil, err
	}

	results := make([]domain.RetrievedDocument, 0, len(s.documents))
	for _, doc := range s.documents {
		if !vectorstore.Matches(doc.Metadata, filter) {
			continue
		}
		results = append(results, domain.RetrievedDocument{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: vectorstore.CloneMetadata(doc.Metadata),
			Score:    vectorstore.Cosine(embedding, doc.Embedding),
		})
	}
	return vectorstore.TopK(results, topK), nil
}

// DeleteDocuments removes documents by id.
func (s *VectorStore) DeleteDocuments(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.documents, id)
	}
	return nil
}

// DeleteAll empties the store.
func (s *VectorStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]domain.IndexedDocument)
	return nil
}

// IsAvailable always reports true.
func (s *VectorStore) IsAvailable(_ context.Context) bool {
	return true
}

// Stats reports the document count.
func (s *VectorStore) Stats(_ context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StoreStats{DocumentCount: len(s.documents), Backend: s.Name()}, nil
}

// Name returns the backend name.
func (s *VectorStore) Name() string {
	return domain.BackendMemory
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}

// Ledger returns a chunk ledger with the same lifetime as the store.
func (s *VectorStore) Ledger() driven.ChunkLedger {
	return NewLedger()
}

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps embeddings in SQLite and ranks them by cosine similarity
// computed in Go.
type VectorStore struct {
	*store
}

// NewVectorStore opens (or creates) the database at path. An empty path
// uses the default location.
func NewVectorStore(path, collection string) (*VectorStore, error) {
	s, err := open(path, collection, domain.BackendSQLite)
	if err != nil {
		return nil, err
	}
	return &VectorStore{store: s}, nil
}

// AddDocuments upserts documents. Every document needs an embedding.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	for _, doc := range docs {
		if doc.Embedding == nil {
			return fmt.Errorf("%w: sqlite: document %s has no embedding", domain.ErrEmbedding, doc.ID)
		}
	}
	return s.upsert(ctx, docs, true)
}

// Search scans the collection and returns the topK closest documents.
func (s *VectorStore) Search(
	ctx context.Context, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	return search(ctx, s.store, embedding, topK, filter)
}

func search(
	ctx context.Context, s *store, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	dim, err := s.dimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []domain.RetrievedDocument{}, nil
	}
	if err := vectorstore.CheckDimension(s.backend, dim, len(embedding)); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, metadata, embedding FROM documents
		WHERE collection = ? AND embedding IS NOT NULL
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	results := []domain.RetrievedDocument{}
	for rows.Next() {
		var doc domain.RetrievedDocument
		var metadata string
		var blob []byte
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
		if !vectorstore.Matches(doc.Metadata, filter) {
			continue
		}
		vec := bytesToFloat32Slice(blob)
		if len(vec) != dim {
			continue
		}
		doc.Score = vectorstore.Cosine(embedding, vec)
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return vectorstore.TopK(results, topK), nil
}

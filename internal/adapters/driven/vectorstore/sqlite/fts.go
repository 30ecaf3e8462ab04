package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure TextStore implements both interfaces.
var (
	_ driven.VectorStore    = (*TextStore)(nil)
	_ driven.TextSearchable = (*TextStore)(nil)
)

// TextStore ranks documents with the SQLite FTS5 bm25 function. Embeddings
// are persisted only when storeEmbeddings is set, in which case Search also
// works.
type TextStore struct {
	*store
	storeEmbeddings bool
}

// NewTextStore opens (or creates) the database at path.
func NewTextStore(path, collection string, storeEmbeddings bool) (*TextStore, error) {
	s, err := open(path, collection, domain.BackendSQLiteFTS)
	if err != nil {
		return nil, err
	}
	return &TextStore{store: s, storeEmbeddings: storeEmbeddings}, nil
}

// RequiresEmbeddingsAtIndexTime reports whether embeddings are persisted.
func (s *TextStore) RequiresEmbeddingsAtIndexTime() bool {
	return s.storeEmbeddings
}

// AddDocuments upserts documents.
func (s *TextStore) AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	return s.upsert(ctx, docs, s.storeEmbeddings)
}

// Search ranks by embedding. It returns no results unless embeddings are
// stored.
func (s *TextStore) Search(
	ctx context.Context, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	return search(ctx, s.store, embedding, topK, filter)
}

// SearchText returns the topK documents by bm25 relevance. Higher scores
// are better.
func (s *TextStore) SearchText(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	match := matchExpression(query)
	if match == "" || topK <= 0 {
		return []domain.RetrievedDocument{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.text, d.metadata, f.score
		FROM (
			SELECT collection, id, -bm25(documents_fts) AS score
			FROM documents_fts
			WHERE documents_fts MATCH ? AND collection = ?
		) f
		JOIN documents d ON d.collection = f.collection AND d.id = f.id
		ORDER BY f.score DESC, d.id
		LIMIT ?
	`, match, s.collection, topK)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	results := []domain.RetrievedDocument{}
	for rows.Next() {
		doc, err := scanRetrieved(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// matchExpression turns free text into an FTS5 query that ORs the quoted
// terms, so operators in user input are never interpreted.
func matchExpression(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " OR ")
}

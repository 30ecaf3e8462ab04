package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// stubEmbedder returns a fixed vector and counts its calls.
type stubEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	batchSizes []int
	err        error
	available  bool
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedCalls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchSizes = append(e.batchSizes, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int                     { return 3 }
func (e *stubEmbedder) IsAvailable(_ context.Context) bool { return e.available }
func (e *stubEmbedder) Name() string                       { return "stub-embedder" }
func (e *stubEmbedder) Close() error                       { return nil }

// stubStore records writes and returns canned search results.
type stubStore struct {
	mu        sync.Mutex
	added     []domain.IndexedDocument
	deleted   []string
	cleared   bool
	results   []domain.RetrievedDocument
	filter    map[string]any
	searchErr error
	available bool
}

func (s *stubStore) AddDocuments(_ context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, docs...)
	return nil
}

func (s *stubStore) Search(
	_ context.Context, _ []float32, _ int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	s.filter = filter
	return s.results, s.searchErr
}

func (s *stubStore) DeleteDocuments(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ids...)
	return nil
}

func (s *stubStore) DeleteAll(_ context.Context) error {
	s.cleared = true
	return nil
}

func (s *stubStore) IsAvailable(_ context.Context) bool { return s.available }

func (s *stubStore) Stats(_ context.Context) (domain.StoreStats, error) {
	return domain.StoreStats{DocumentCount: len(s.added), Backend: s.Name()}, nil
}

func (s *stubStore) Name() string { return "stub-store" }
func (s *stubStore) Close() error { return nil }

// stubTextStore is a stubStore that searches raw text.
type stubTextStore struct {
	stubStore
	embedAtIndex bool
	textQuery    string
}

var _ driven.TextSearchable = (*stubTextStore)(nil)

func (s *stubTextStore) SearchText(_ context.Context, query string, _ int) ([]domain.RetrievedDocument, error) {
	s.textQuery = query
	return s.results, s.searchErr
}

func (s *stubTextStore) RequiresEmbeddingsAtIndexTime() bool { return s.embedAtIndex }

// stubLLM echoes a canned answer and records the prompts it was given.
type stubLLM struct {
	answer    string
	fragments []domain.Fragment
	err       error
	available bool

	calls  int
	prompt string
	system string
	opts   driven.GenerateOptions
}

func (l *stubLLM) Generate(_ context.Context, prompt, system string, opts driven.GenerateOptions) (string, error) {
	l.calls++
	l.prompt, l.system, l.opts = prompt, system, opts
	return l.answer, l.err
}

func (l *stubLLM) StreamGenerate(
	_ context.Context, prompt, system string, opts driven.GenerateOptions,
) (<-chan domain.Fragment, error) {
	l.calls++
	l.prompt, l.system, l.opts = prompt, system, opts
	if l.err != nil {
		return nil, l.err
	}
	ch := make(chan domain.Fragment, len(l.fragments))
	for _, f := range l.fragments {
		ch <- f
	}
	close(ch)
	return ch, nil
}

func (l *stubLLM) IsAvailable(_ context.Context) bool { return l.available }
func (l *stubLLM) Name() string                       { return "stub-llm" }
func (l *stubLLM) Close() error                       { return nil }

func retrieved(id, title, url string, score float64) domain.RetrievedDocument {
	meta := map[string]any{}
	if title != "" {
		meta[domain.MetaTitle] = title
	}
	if url != "" {
		meta[domain.MetaURL] = url
	}
	return domain.RetrievedDocument{ID: id, Text: "text of " + id, Metadata: meta, Score: score}
}

func collect(ch <-chan domain.Fragment) []domain.Fragment {
	var out []domain.Fragment
	for f := range ch {
		out = append(out, f)
	}
	return out
}

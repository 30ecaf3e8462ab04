package mcp

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer       domain.Answer
	err          error
	lastQuestion string
	lastTopK     int
}

func (m *mockQueryService) Ask(_ context.Context, question string, topK int) (domain.Answer, error) {
	m.lastQuestion = question
	m.lastTopK = topK
	return m.answer, m.err
}

func (m *mockQueryService) AskStream(
	_ context.Context,
	_ string,
	_ int,
) (<-chan domain.Fragment, []domain.Source, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	ch := make(chan domain.Fragment, 2)
	ch <- domain.Fragment{Text: m.answer.Text}
	ch <- domain.Fragment{Done: true}
	close(ch)
	return ch, m.answer.Sources, nil
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	docs      []domain.RetrievedDocument
	stats     domain.StoreStats
	err       error
	lastQuery string
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, _ int) ([]domain.RetrievedDocument, error) {
	m.lastQuery = query
	return m.docs, m.err
}

func (m *mockRetrievalService) RetrieveFiltered(
	_ context.Context,
	query string,
	_ int,
	_ map[string]any,
) ([]domain.RetrievedDocument, error) {
	m.lastQuery = query
	return m.docs, m.err
}

func (m *mockRetrievalService) AddDocuments(_ context.Context, _ []domain.IndexedDocument) error {
	return m.err
}

func (m *mockRetrievalService) DeleteDocuments(_ context.Context, _ []string) error {
	return m.err
}

func (m *mockRetrievalService) DeleteAll(_ context.Context) error {
	return m.err
}

func (m *mockRetrievalService) Stats(_ context.Context) (domain.StoreStats, error) {
	return m.stats, m.err
}

func (m *mockRetrievalService) UsesTextSearch() bool { return false }

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	sources []string
	err     error
}

func (m *mockIndexService) IndexSource(_ context.Context, _ domain.SourceDocument) (bool, error) {
	return true, m.err
}

func (m *mockIndexService) RemoveSource(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIndexService) Rebuild(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) Sources(_ context.Context) ([]string, error) {
	return m.sources, m.err
}

func newTestPorts() *Ports {
	return &Ports{
		Query:     &mockQueryService{},
		Retrieval: &mockRetrievalService{},
	}
}

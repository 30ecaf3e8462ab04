package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService chains retrieval and generation for the CLI, HTTP, MCP and
// TUI front ends.
type QueryService struct {
	retrieval  driving.RetrievalService
	generation driving.GenerationService
}

// NewQueryService creates a query service.
func NewQueryService(retrieval driving.RetrievalService, generation driving.GenerationService) *QueryService {
	return &QueryService{retrieval: retrieval, generation: generation}
}

// Ask answers question.
func (s *QueryService) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	docs, err := s.retrieval.Retrieve(ctx, question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.generation.GenerateAnswer(ctx, question, docs)
}

// AskStream answers question as a stream of fragments.
func (s *QueryService) AskStream(
	ctx context.Context, question string, topK int,
) (<-chan domain.Fragment, []domain.Source, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	docs, err := s.retrieval.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, nil, err
	}
	return s.generation.StreamAnswer(ctx, question, docs)
}

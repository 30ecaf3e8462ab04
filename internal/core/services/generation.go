package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
	"github.com/custodia-labs/context-search/internal/logger"
)

// Ensure GenerationService implements the interface.
var _ driving.GenerationService = (*GenerationService)(nil)

// NoAnswerMessage is returned without calling the model when retrieval
// found nothing.
const NoAnswerMessage = "I couldn't find any relevant information to answer your question. " +
	"Please try rephrasing it or check if the content has been indexed."

// GenerationService builds prompts, calls the language model and attributes
// the answer to the documents it was given. It never retries; deciding
// whether to return sources without an answer is the caller's policy.
type GenerationService struct {
	llm     driven.LanguageModel
	prompts *PromptBuilder
	opts    driven.GenerateOptions
}

// NewGenerationService creates a generation service.
func NewGenerationService(llm driven.LanguageModel, prompts *PromptBuilder, opts driven.GenerateOptions) *GenerationService {
	return &GenerationService{
		llm:     llm,
		prompts: prompts,
		opts:    opts,
	}
}

// GenerateAnswer answers question from docs.
func (s *GenerationService) GenerateAnswer(
	ctx context.Context, question string, docs []domain.RetrievedDocument,
) (domain.Answer, error) {
	logger.Section("Generation")
	defer logger.Timed("generation")()

	if len(docs) == 0 {
		logger.Debug("No documents, returning fallback answer")
		return domain.Answer{Text: NoAnswerMessage, Sources: []domain.Source{}}, nil
	}

	system, user := s.prompts.Build(question, docs)
	logger.Debug("Prompt: %d chars, %d documents, model: %s", len(user), len(docs), s.llm.Name())

	text, err := s.llm.Generate(ctx, user, system, s.opts)
	if err != nil {
		return domain.Answer{}, &domain.GenerationError{Backend: s.llm.Name(), Err: err}
	}

	return domain.Answer{
		Text:    strings.TrimSpace(text),
		Sources: Sources(docs),
	}, nil
}

// StreamAnswer answers question from docs as a stream of fragments. Errors
// carried by fragments are wrapped in *domain.GenerationError.
func (s *GenerationService) StreamAnswer(
	ctx context.Context, question string, docs []domain.RetrievedDocument,
) (<-chan domain.Fragment, []domain.Source, error) {
	logger.Section("Streaming Generation")

	if len(docs) == 0 {
		logger.Debug("No documents, streaming fallback answer")
		out := make(chan domain.Fragment, 2)
		out <- domain.Fragment{Text: NoAnswerMessage}
		out <- domain.Fragment{Done: true}
		close(out)
		return out, []domain.Source{}, nil
	}

	system, user := s.prompts.Build(question, docs)
	upstream, err := s.llm.StreamGenerate(ctx, user, system, s.opts)
	if err != nil {
		return nil, nil, &domain.GenerationError{Backend: s.llm.Name(), Err: err}
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		for f := range upstream {
			if f.Err != nil {
				f.Err = &domain.GenerationError{Backend: s.llm.Name(), Err: f.Err}
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			if f.Done || f.Err != nil {
				return
			}
		}
	}()

	return out, Sources(docs), nil
}

// Sources maps each document to a source, in order, keeping duplicates.
func Sources(docs []domain.RetrievedDocument) []domain.Source {
	sources := make([]domain.Source, len(docs))
	for i, doc := range docs {
		sources[i] = domain.SourceFromDocument(doc)
	}
	return sources
}

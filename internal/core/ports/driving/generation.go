package driving

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// GenerationService turns retrieved documents into an attributed answer.
type GenerationService interface {
	// GenerateAnswer builds the prompt, calls the language model once and
	// maps each document to a source in order. Model failures are
	// *domain.GenerationError and are not retried.
	GenerateAnswer(ctx context.Context, question string, docs []domain.RetrievedDocument) (domain.Answer, error)

	// StreamAnswer is GenerateAnswer with the answer delivered as fragments.
	// Sources are known up front and returned alongside the channel.
	StreamAnswer(ctx context.Context, question string, docs []domain.RetrievedDocument) (<-chan domain.Fragment, []domain.Source, error)
}

// QueryService runs retrieval followed by generation.
type QueryService interface {
	// Ask answers a question. topK <= 0 uses the configured default.
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)

	// AskStream answers a question as a stream of fragments.
	AskStream(ctx context.Context, question string, topK int) (<-chan domain.Fragment, []domain.Source, error)
}

package driven

import (
	"context"
	"fmt"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// LanguageModel produces answers from a prompt.
//
// Implementations include:
//   - OpenAI (GPT-4o, GPT-4o-mini)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LanguageModel interface {
	// Generate blocks until the complete answer is available.
	Generate(ctx context.Context, prompt, systemPrompt string, opts GenerateOptions) (string, error)

	// StreamGenerate issues a fresh request and returns its fragments.
	// The channel ends with a Fragment whose Done or Err is set and is then
	// closed. Cancelling ctx aborts the request and closes the channel.
	StreamGenerate(ctx context.Context, prompt, systemPrompt string, opts GenerateOptions) (<-chan domain.Fragment, error)

	// IsAvailable is a lightweight liveness probe. It never panics.
	IsAvailable(ctx context.Context) bool

	// Name identifies the backend in errors and logs.
	Name() string

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// Temperature controls randomness in [0,2]. Nil uses the adapter default.
	Temperature *float64

	// MaxTokens caps the output length. Zero uses the adapter default.
	MaxTokens int
}

// Validate checks the option ranges.
func (o GenerateOptions) Validate() error {
	if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > domain.MaxTemperature) {
		return fmt.Errorf("%w: temperature must be in [0,2], got %g", domain.ErrInvalidConfiguration, *o.Temperature)
	}
	if o.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must not be negative, got %d", domain.ErrInvalidConfiguration, o.MaxTokens)
	}
	return nil
}

// OptionsFromMap reads the recognised keys "temperature" and "max_tokens".
// Unrecognised keys are ignored.
func OptionsFromMap(m map[string]any) (GenerateOptions, error) {
	var opts GenerateOptions
	if v, ok := m["temperature"]; ok && v != nil {
		f, ok := toFloat(v)
		if !ok {
			return opts, fmt.Errorf("%w: temperature must be a number", domain.ErrInvalidConfiguration)
		}
		opts.Temperature = &f
	}
	if v, ok := m["max_tokens"]; ok && v != nil {
		f, ok := toFloat(v)
		if !ok || f != float64(int(f)) {
			return opts, fmt.Errorf("%w: max_tokens must be an integer", domain.ErrInvalidConfiguration)
		}
		opts.MaxTokens = int(f)
	}
	return opts, opts.Validate()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

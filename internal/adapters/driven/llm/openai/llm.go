// Package openai provides a language model adapter using the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure LanguageModel implements the interface.
var _ driven.LanguageModel = (*LanguageModel)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI adapter.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LanguageModel generates answers using the OpenAI API.
type LanguageModel struct {
	client *goopenai.Client
	model  string
}

// NewLanguageModel creates a new OpenAI adapter.
func NewLanguageModel(cfg Config) (*LanguageModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrInvalidConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &LanguageModel{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Generate returns the complete answer.
func (m *LanguageModel) Generate(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions,
) (string, error) {
	req, err := m.request(prompt, systemPrompt, opts)
	if err != nil {
		return "", err
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamGenerate streams the answer. One goroutine reads the stream and
// closes the channel after the terminal fragment.
func (m *LanguageModel) StreamGenerate(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions,
) (<-chan domain.Fragment, error) {
	req, err := m.request(prompt, systemPrompt, opts)
	if err != nil {
		return nil, err
	}

	s, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, wrap(err)
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer s.Close()

		send := func(f domain.Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := s.Recv()
			if errors.Is(err, io.EOF) {
				send(domain.Fragment{Done: true})
				return
			}
			if err != nil {
				send(domain.Fragment{Err: wrap(err)})
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(domain.Fragment{Text: choice.Delta.Content}) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *LanguageModel) request(prompt, systemPrompt string, opts driven.GenerateOptions) (goopenai.ChatCompletionRequest, error) {
	if err := opts.Validate(); err != nil {
		return goopenai.ChatCompletionRequest{}, err
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := goopenai.ChatCompletionRequest{
		Model:     m.model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	return req, nil
}

// IsAvailable lists models as a lightweight connectivity check.
func (m *LanguageModel) IsAvailable(ctx context.Context) bool {
	_, err := m.client.ListModels(ctx)
	return err == nil
}

// Name returns the backend name.
func (m *LanguageModel) Name() string {
	return domain.BackendOpenAI
}

// Close releases resources.
func (m *LanguageModel) Close() error {
	return nil
}

// wrap marks transport failures as domain.ErrBackendUnavailable.
func wrap(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai error (status %d): %w", apiErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("%w: openai: %w", domain.ErrBackendUnavailable, err)
}

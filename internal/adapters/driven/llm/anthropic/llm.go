// Package anthropic provides a language model adapter using the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/context-search/internal/adapters/driven/llm/stream"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure LanguageModel implements the interface.
var _ driven.LanguageModel = (*LanguageModel)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"

	// maxTemperature is the upper bound the Messages API accepts.
	maxTemperature = 1.0
)

// Config holds configuration for the Anthropic adapter.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LanguageModel generates answers using the Anthropic API.
type LanguageModel struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// streamEvent is the payload of one server-sent event.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLanguageModel creates a new Anthropic adapter.
func NewLanguageModel(cfg Config) (*LanguageModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic: API key is required", domain.ErrInvalidConfiguration)
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

	return &LanguageModel{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Generate returns the complete answer.
func (m *LanguageModel) Generate(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions,
) (string, error) {
	resp, err := m.send(ctx, prompt, systemPrompt, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}

	// Concatenate all text content blocks
	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

// StreamGenerate streams the answer from server-sent events.
func (m *LanguageModel) StreamGenerate(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions,
) (<-chan domain.Fragment, error) {
	resp, err := m.send(ctx, prompt, systemPrompt, opts, true)
	if err != nil {
		return nil, err
	}
	return stream.Lines(ctx, resp.Body, parseEvent), nil
}

// parseEvent handles one SSE line. Only data lines carry payloads.
func parseEvent(line []byte) (string, bool, error) {
	data, ok := bytes.CutPrefix(line, []byte("data: "))
	if !ok {
		return "", false, nil
	}

	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", false, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, false, nil
		}
	case "message_stop":
		return "", true, nil
	case "error":
		msg := "unknown error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		return "", false, fmt.Errorf("anthropic stream error: %s", msg)
	}
	return "", false, nil
}

func (m *LanguageModel) send(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions, streaming bool,
) (*http.Response, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// Anthropic requires max_tokens to be set
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := messagesRequest{
		Model:     m.model,
		Messages:  []messagesMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Stream:    streaming,
	}
	if opts.Temperature != nil {
		t := min(*opts.Temperature, maxTemperature)
		reqBody.Temperature = &t
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: send request: %w", domain.ErrBackendUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// IsAvailable sends a one-token request, the lightest call that proves the
// key and model are usable.
func (m *LanguageModel) IsAvailable(ctx context.Context) bool {
	_, err := m.Generate(ctx, "ping", "", driven.GenerateOptions{MaxTokens: 1})
	return err == nil
}

// Name returns the backend name.
func (m *LanguageModel) Name() string {
	return domain.BackendAnthropic
}

// Close releases resources.
func (m *LanguageModel) Close() error {
	return nil
}

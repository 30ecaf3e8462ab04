// Package ollama provides a language model adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/context-search/internal/adapters/driven/llm/stream"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/logger"
)

// Ensure LanguageModel implements the interface.
var _ driven.LanguageModel = (*LanguageModel)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// errChatUnsupported marks servers without /api/chat.
var errChatUnsupported = errors.New("ollama: chat endpoint not found")

// Config holds configuration for the Ollama adapter.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LanguageModel generates answers using Ollama.
type LanguageModel struct {
	client  *http.Client
	baseURL string
	model   string
}

// options holds generation parameters.
type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// generateRequest is the Ollama /api/generate request format, used when
// the server predates /api/chat.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

// chunk is one line of either endpoint's response. /api/chat fills
// Message, /api/generate fills Response.
type chunk struct {
	Message  chatMessage `json:"message"`
	Response string      `json:"response"`
	Done     bool        `json:"done"`
	Error    string      `json:"error"`
}

// NewLanguageModel creates a new Ollama adapter.
func NewLanguageModel(cfg Config) *LanguageModel {
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
		model:   cfg.Model,
	}
}

// Generate returns the complete answer.
func (m *LanguageModel) Generate(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions,
) (string, error) {
	resp, err := m.open(ctx, prompt, systemPrompt, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var c chunk
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if c.Error != "" {
		return "", fmt.Errorf("ollama error: %s", c.Error)
	}
	return strings.TrimSpace(c.Message.Content + c.Response), nil
}

// StreamGenerate streams the answer from newline-delimited JSON.
func (m *LanguageModel) StreamGenerate(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions,
) (<-chan domain.Fragment, error) {
	resp, err := m.open(ctx, prompt, systemPrompt, opts, true)
	if err != nil {
		return nil, err
	}
	return stream.Lines(ctx, resp.Body, parseChunk), nil
}

func parseChunk(line []byte) (string, bool, error) {
	var c chunk
	if err := json.Unmarshal(line, &c); err != nil {
		return "", false, fmt.Errorf("decode chunk: %w", err)
	}
	if c.Error != "" {
		return "", false, fmt.Errorf("ollama error: %s", c.Error)
	}
	return c.Message.Content + c.Response, c.Done, nil
}

// open posts to /api/chat and falls back to /api/generate on 404.
func (m *LanguageModel) open(
	ctx context.Context, prompt, systemPrompt string, opts driven.GenerateOptions, streaming bool,
) (*http.Response, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	o := &options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	resp, err := m.post(ctx, "/api/chat", chatRequest{
		Model:    m.model,
		Messages: messages,
		Stream:   streaming,
		Options:  o,
	})
	if !errors.Is(err, errChatUnsupported) {
		return resp, err
	}

	logger.Debug("ollama: /api/chat not found, falling back to /api/generate")
	fullPrompt := prompt
	if systemPrompt != "" {
		fullPrompt = systemPrompt + "\n\n" + prompt
	}
	return m.post(ctx, "/api/generate", generateRequest{
		Model:   m.model,
		Prompt:  fullPrompt,
		Stream:  streaming,
		Options: o,
	})
}

func (m *LanguageModel) post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: send request: %w", domain.ErrBackendUnavailable, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound && path == "/api/chat" {
		return nil, errChatUnsupported
	}
	respBody, _ := io.ReadAll(resp.Body)
	return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
}

// IsAvailable checks that the server answers /api/tags and that the
// configured model has been pulled.
func (m *LanguageModel) IsAvailable(ctx context.Context) bool {
	models, err := m.listModels(ctx)
	if err != nil {
		logger.Debug("ollama availability check failed: %v", err)
		return false
	}
	if !slices.ContainsFunc(models, m.matchesModel) {
		logger.Warn("ollama model %q not found, available: %v", m.model, models)
		return false
	}
	return true
}

// matchesModel treats "llama3.2" and "llama3.2:latest" as the same model.
func (m *LanguageModel) matchesModel(name string) bool {
	return name == m.model || name == m.model+":latest"
}

func (m *LanguageModel) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, t := range tags.Models {
		names[i] = t.Name
	}
	return names, nil
}

// Name returns the backend name.
func (m *LanguageModel) Name() string {
	return domain.BackendOllama
}

// Close releases resources.
func (m *LanguageModel) Close() error {
	return nil
}

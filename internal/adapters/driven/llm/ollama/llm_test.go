package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/adapters/driven/llm/stream"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

func chatServer(t *testing.T, withChat bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
		case "/api/chat":
			if !withChat {
				http.NotFound(w, r)
				return
			}
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			if !req.Stream {
				_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" Blue. "},"done":true}`))
				return
			}
			_, _ = w.Write([]byte(`{"message":{"content":"Bl"},"done":false}` + "\n"))
			_, _ = w.Write([]byte(`{"message":{"content":"ue."},"done":false}` + "\n"))
			_, _ = w.Write([]byte(`{"message":{"content":""},"done":true}` + "\n"))
		case "/api/generate":
			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Contains(t, req.Prompt, "sys\n\nquestion")
			if !req.Stream {
				_, _ = w.Write([]byte(`{"response":"Blue.","done":true}`))
				return
			}
			_, _ = w.Write([]byte(`{"response":"Blue.","done":true}` + "\n"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestNewLanguageModel_Defaults(t *testing.T) {
	m := NewLanguageModel(Config{})

	assert.Equal(t, DefaultBaseURL, m.baseURL)
	assert.Equal(t, DefaultModel, m.model)
	assert.Equal(t, "ollama", m.Name())
}

func TestGenerate_Chat(t *testing.T) {
	srv := chatServer(t, true)
	defer srv.Close()

	m := NewLanguageModel(Config{BaseURL: srv.URL})
	text, err := m.Generate(context.Background(), "question", "sys", driven.GenerateOptions{MaxTokens: 10})

	require.NoError(t, err)
	assert.Equal(t, "Blue.", text)
}

func TestGenerate_FallsBackToGenerateEndpoint(t *testing.T) {
	srv := chatServer(t, false)
	defer srv.Close()

	m := NewLanguageModel(Config{BaseURL: srv.URL})
	text, err := m.Generate(context.Background(), "question", "sys", driven.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Blue.", text)

	ch, err := m.StreamGenerate(context.Background(), "question", "sys", driven.GenerateOptions{})
	require.NoError(t, err)
	streamed, err := stream.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Blue.", streamed)
}

func TestStreamGenerate_Order(t *testing.T) {
	srv := chatServer(t, true)
	defer srv.Close()

	m := NewLanguageModel(Config{BaseURL: srv.URL})
	ch, err := m.StreamGenerate(context.Background(), "question", "sys", driven.GenerateOptions{})
	require.NoError(t, err)

	var frags []domain.Fragment
	for f := range ch {
		frags = append(frags, f)
	}
	require.Len(t, frags, 3)
	assert.Equal(t, "Bl", frags[0].Text)
	assert.Equal(t, "ue.", frags[1].Text)
	assert.True(t, frags[2].Done)
}

func TestIsAvailable(t *testing.T) {
	srv := chatServer(t, true)
	defer srv.Close()

	assert.True(t, NewLanguageModel(Config{BaseURL: srv.URL}).IsAvailable(context.Background()))
	assert.False(t, NewLanguageModel(Config{BaseURL: srv.URL, Model: "mistral"}).IsAvailable(context.Background()))
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewLanguageModel(Config{BaseURL: url})
	_, err := m.Generate(context.Background(), "q", "", driven.GenerateOptions{})

	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.False(t, m.IsAvailable(context.Background()))
}

package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "plain query",
			uri:      "context-search://passages/sky",
			expected: "sky",
		},
		{
			name:     "encoded query",
			uri:      "context-search://passages/colour%20of%20the%20sky",
			expected: "colour of the sky",
		},
		{
			name:     "invalid prefix",
			uri:      "file://passages/sky",
			expected: "",
		},
		{
			name:     "blank query",
			uri:      "context-search://passages/%20",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractQuery(tt.uri))
		})
	}
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleSourcesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil index service returns empty list", func(t *testing.T) {
		server, err := NewServer(newTestPorts())
		require.NoError(t, err)

		result, err := server.handleSourcesResource(ctx, makeReadResourceRequest("context-search://sources"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns source refs", func(t *testing.T) {
		ports := newTestPorts()
		ports.Index = &mockIndexService{sources: []string{"page:1", "page:2"}}
		server, err := NewServer(ports)
		require.NoError(t, err)

		result, err := server.handleSourcesResource(ctx, makeReadResourceRequest("context-search://sources"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.JSONEq(t, `["page:1","page:2"]`, result.Contents[0].Text)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		ports := newTestPorts()
		ports.Index = &mockIndexService{err: errors.New("database error")}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, err = server.handleSourcesResource(ctx, makeReadResourceRequest("context-search://sources"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing sources")
	})
}

func TestServer_handleStatsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns store stats", func(t *testing.T) {
		ports := newTestPorts()
		ports.Retrieval = &mockRetrievalService{stats: domain.StoreStats{DocumentCount: 3, Backend: "memory"}}
		server, err := NewServer(ports)
		require.NoError(t, err)

		result, err := server.handleStatsResource(ctx, makeReadResourceRequest("context-search://stats"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.JSONEq(t, `{"document_count":3,"backend":"memory"}`, result.Contents[0].Text)
	})

	t.Run("returns error on stats failure", func(t *testing.T) {
		ports := newTestPorts()
		ports.Retrieval = &mockRetrievalService{err: errors.New("store down")}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, err = server.handleStatsResource(ctx, makeReadResourceRequest("context-search://stats"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading stats")
	})
}

func TestServer_handlePassagesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages for the decoded query", func(t *testing.T) {
		retrieval := &mockRetrievalService{
			docs: []domain.RetrievedDocument{{ID: "doc-1", Text: "The sky is blue.", Score: 1}},
		}
		ports := newTestPorts()
		ports.Retrieval = retrieval
		server, err := NewServer(ports)
		require.NoError(t, err)

		result, err := server.handlePassagesResource(ctx,
			makeReadResourceRequest("context-search://passages/colour%20of%20the%20sky"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, "The sky is blue.")
		assert.Equal(t, "colour of the sky", retrieval.lastQuery)
	})

	t.Run("missing query is not found", func(t *testing.T) {
		server, err := NewServer(newTestPorts())
		require.NoError(t, err)

		_, err = server.handlePassagesResource(ctx, makeReadResourceRequest("context-search://passages/"))

		require.Error(t, err)
	})
}

package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("missing query service returns error", func(t *testing.T) {
		ports := &Ports{Retrieval: &mockRetrievalService{}}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingQueryService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(newTestPorts())
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("empty ports requires query service", func(t *testing.T) {
		ports := &Ports{}
		assert.ErrorIs(t, ports.Validate(), ErrMissingQueryService)
	})

	t.Run("missing retrieval service returns error", func(t *testing.T) {
		ports := &Ports{Query: &mockQueryService{}}
		assert.ErrorIs(t, ports.Validate(), ErrMissingRetrievalService)
	})

	t.Run("index service is optional", func(t *testing.T) {
		assert.NoError(t, newTestPorts().Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := newTestPorts()
		ports.Index = &mockIndexService{}
		assert.NoError(t, ports.Validate())
	})
}

func TestServer_Handler(t *testing.T) {
	server, err := NewServer(newTestPorts())
	require.NoError(t, err)
	assert.NotNil(t, server.Handler())
}

func TestServer_RunHTTPStopsOnCancel(t *testing.T) {
	server, err := NewServer(newTestPorts())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, server.RunHTTP(ctx, "127.0.0.1:0"))
}

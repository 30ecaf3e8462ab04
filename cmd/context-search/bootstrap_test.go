package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

func offlineConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.EmbedderBackend = domain.BackendHashing
	cfg.VectorDBBackend = domain.BackendMemory
	cfg.LLMBackend = domain.BackendOllama
	return cfg
}

func TestBootstrap_LoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("TOP_K = 9\nSITE_NAME = \"Docs\"\n"), 0o644))

	cfg, err := (&bootstrap{}).LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.TopK)
	assert.Equal(t, "Docs", cfg.SiteName)
}

func TestBootstrap_LoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := (&bootstrap{}).LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestBootstrap_RenderConfig(t *testing.T) {
	out, err := (&bootstrap{}).RenderConfig(domain.DefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, out, "LLM_BACKEND")
}

func TestBootstrap_Build(t *testing.T) {
	b := &bootstrap{promptDir: t.TempDir()}
	ctx := context.Background()

	svc, err := b.Build(ctx, offlineConfig())
	require.NoError(t, err)
	defer svc.Close() //nolint:errcheck

	require.NotNil(t, svc.Query)
	require.NotNil(t, svc.Health)

	indexed, err := svc.Index.IndexSource(ctx, domain.SourceDocument{
		Ref:   "sky",
		Title: "Sky",
		URL:   "https://example.com/sky",
		Text:  "The sky is blue because of Rayleigh scattering.",
	})
	require.NoError(t, err)
	assert.True(t, indexed)

	docs, err := svc.Retrieval.Retrieve(ctx, "why is the sky blue", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	title, _ := docs[0].MetadataString(domain.MetaTitle)
	assert.Equal(t, "Sky", title)

	sources, err := svc.Index.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sky"}, sources)
}

func TestBootstrap_Build_InvalidPromptTemplate(t *testing.T) {
	cfg := offlineConfig()
	cfg.PromptTemplate = "no placeholders"

	_, err := (&bootstrap{promptDir: t.TempDir()}).Build(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestBootstrap_Build_PromptFileOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.txt"), []byte("missing placeholders"), 0o644))

	_, err := (&bootstrap{promptDir: dir}).Build(context.Background(), offlineConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

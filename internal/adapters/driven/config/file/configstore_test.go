package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewConfigStore_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".context-search", "config.toml"), store.Path())

	// A missing default file resolves to the defaults.
	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestConfigStore_Load_ExplicitPathMustExist(t *testing.T) {
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	_, err = store.Load()
	assert.Error(t, err)
}

func TestConfigStore_Load_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
LLM_BACKEND = "anthropic"
LLM_TEMPERATURE = 0.2
TOP_K = 3
PAGE_TYPES = ["blog", "news"]

[BACKEND_SETTINGS.anthropic]
api_key = "sk-ant"

[BACKEND_SETTINGS.ollama]
timeout = 10
`)
	store, _ := NewConfigStore(path)

	cfg, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLMBackend)
	assert.InDelta(t, 0.2, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, []string{"blog", "news"}, cfg.PageTypes)
	assert.Equal(t, "sk-ant", cfg.BackendSettings("anthropic")["api_key"])
	assert.Equal(t, int64(10), cfg.BackendSettings("ollama")["timeout"])
	// Untouched defaults of a merged backend survive.
	assert.Equal(t, "http://localhost:11434", cfg.BackendSettings("ollama")["base_url"])
	assert.Equal(t, domain.DefaultChunkSize, cfg.ChunkSize)
}

func TestConfigStore_Load_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
VECTOR_DB_BACKEND: qdrant
CHUNK_SIZE: 256
CHUNK_OVERLAP: 32
ASSISTANT_ENABLED: true
BACKEND_SETTINGS:
  qdrant:
    url: http://qdrant:6333
`)
	store, _ := NewConfigStore(path)

	cfg, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.VectorDBBackend)
	assert.Equal(t, 256, cfg.ChunkSize)
	assert.Equal(t, 32, cfg.ChunkOverlap)
	assert.True(t, cfg.AssistantEnabled)
	assert.Equal(t, "http://qdrant:6333", cfg.BackendSettings("qdrant")["url"])
}

func TestConfigStore_Load_EmptyYAML(t *testing.T) {
	store, _ := NewConfigStore(writeConfig(t, "config.yml", ""))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTopK, cfg.TopK)
}

func TestConfigStore_Load_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown toml key", "c.toml", `TOPK = 3`},
		{"unknown yaml key", "c.yaml", "TOPK: 3\n"},
		{"invalid toml", "c.toml", `TOP_K = `},
		{"wrong type", "c.toml", `TOP_K = "five"`},
		{"invalid value", "c.toml", "CHUNK_SIZE = 10\nCHUNK_OVERLAP = 10"},
		{"unsupported format", "c.json", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := NewConfigStore(writeConfig(t, tt.file, tt.content))

			_, err := store.Load()
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

func TestRender_MasksSecrets(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Backends[domain.BackendOpenAI]["api_key"] = "sk-secret"

	data, err := Render(cfg)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "sk-secret")
	assert.Contains(t, string(data), maskedValue)
	assert.Equal(t, "sk-secret", cfg.Backends[domain.BackendOpenAI]["api_key"], "input must not be modified")

	// Rendered output is itself a valid configuration file.
	var o domain.Overrides
	require.NoError(t, toml.Unmarshal(data, &o))
	assert.Equal(t, cfg.TopK, *o.TopK)
	assert.Equal(t, "", o.Backends[domain.BackendAnthropic]["api_key"])
}

package backends

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/pgvector"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/sqlite"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// localConfig selects backends that need no credentials.
func localConfig(t *testing.T) domain.Config {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.LLMBackend = domain.BackendOllama
	cfg.EmbedderBackend = domain.BackendHashing
	cfg.EmbeddingDimension = 64
	cfg.VectorDBBackend = domain.BackendMemory
	cfg.Backends[domain.BackendSQLite]["path"] = filepath.Join(t.TempDir(), "index.db")
	cfg.Backends[domain.BackendSQLiteFTS]["path"] = filepath.Join(t.TempDir(), "fts.db")
	return cfg
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{name: "local defaults", mutate: func(*domain.Config) {}},
		{
			name:    "unknown llm backend",
			mutate:  func(c *domain.Config) { c.LLMBackend = "gpt" },
			wantErr: `unknown LLM_BACKEND "gpt"`,
		},
		{
			name:    "anthropic cannot embed",
			mutate:  func(c *domain.Config) { c.EmbedderBackend = domain.BackendAnthropic },
			wantErr: "unknown EMBEDDER_BACKEND",
		},
		{
			name:    "unknown vector backend",
			mutate:  func(c *domain.Config) { c.VectorDBBackend = "chroma" },
			wantErr: "unknown VECTOR_DB_BACKEND",
		},
		{
			name:    "unknown backend settings entry",
			mutate:  func(c *domain.Config) { c.Backends["qdrnt"] = map[string]any{} },
			wantErr: `unknown backend "qdrnt"`,
		},
		{
			name:    "unknown option",
			mutate:  func(c *domain.Config) { c.Backends[domain.BackendQdrant]["host"] = "x" },
			wantErr: `BACKEND_SETTINGS.qdrant: unknown option "host"`,
		},
		{
			name:    "wrong type",
			mutate:  func(c *domain.Config) { c.Backends[domain.BackendSQLiteFTS]["store_embeddings"] = "yes" },
			wantErr: "store_embeddings must be of type boolean",
		},
		{
			name:   "integer from toml",
			mutate: func(c *domain.Config) { c.Backends[domain.BackendOllama]["timeout"] = int64(10) },
		},
		{
			name:    "fractional integer",
			mutate:  func(c *domain.Config) { c.Backends[domain.BackendOllama]["timeout"] = 1.5 },
			wantErr: "timeout must be of type integer",
		},
		{
			name:    "missing api key for selected backend",
			mutate:  func(c *domain.Config) { c.LLMBackend = domain.BackendAnthropic },
			wantErr: "anthropic.api_key is required (or set ANTHROPIC_API_KEY)",
		},
		{
			name: "api key in settings",
			mutate: func(c *domain.Config) {
				c.LLMBackend = domain.BackendOpenAI
				c.Backends[domain.BackendOpenAI]["api_key"] = "sk-test"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(t)
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettings_EnvironmentFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	cfg := localConfig(t)

	assert.Equal(t, "from-env", Settings(cfg, domain.BackendOpenAI)["api_key"])

	cfg.Backends[domain.BackendOpenAI]["api_key"] = "from-config"
	assert.Equal(t, "from-config", Settings(cfg, domain.BackendOpenAI)["api_key"])

	cfg.LLMBackend = domain.BackendOpenAI
	cfg.Backends[domain.BackendOpenAI]["api_key"] = ""
	assert.NoError(t, Validate(cfg))
}

func TestBuild_Local(t *testing.T) {
	set, err := Build(localConfig(t))
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, "hashing", set.Embedder.Name())
	assert.Equal(t, 64, set.Embedder.Dimension())
	assert.Equal(t, "ollama", set.LLM.Name())
	assert.IsType(t, &memory.VectorStore{}, set.Store)
	assert.IsType(t, &memory.Ledger{}, set.Ledger)
}

func TestBuild_SQLiteBackends(t *testing.T) {
	cfg := localConfig(t)
	cfg.VectorDBBackend = domain.BackendSQLite

	set, err := Build(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.VectorStore{}, set.Store)
	assert.IsType(t, &sqlite.Ledger{}, set.Ledger)
	require.NoError(t, set.Close())

	cfg.VectorDBBackend = domain.BackendSQLiteFTS
	set, err = Build(cfg)
	require.NoError(t, err)
	defer set.Close()

	_, ok := set.Store.(driven.TextSearchable)
	assert.True(t, ok)
}

func TestBuild_RemoteStoreUsesSQLiteLedger(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := localConfig(t)
	cfg.VectorDBBackend = domain.BackendQdrant

	set, err := Build(cfg)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, "qdrant", set.Store.Name())
	assert.IsType(t, &sqlite.Ledger{}, set.Ledger)
}

func TestBuild_PGVector(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://context@127.0.0.1:1/context?sslmode=disable")
	cfg := localConfig(t)
	cfg.VectorDBBackend = domain.BackendPGVector

	set, err := Build(cfg)
	require.NoError(t, err)
	defer set.Close()

	assert.IsType(t, &pgvector.VectorStore{}, set.Store)
	assert.IsType(t, &sqlite.Ledger{}, set.Ledger)
	assert.Equal(t, "postgres://context@127.0.0.1:1/context?sslmode=disable",
		Settings(cfg, domain.BackendPGVector)["connection_string"])

	cfg.Backends[domain.BackendPGVector]["connection_string"] = "postgres://localhost/db?pool_max_conns=many"
	_, err = Build(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestBuild_InvalidConfiguration(t *testing.T) {
	cfg := localConfig(t)
	cfg.EmbedderBackend = "nope"

	_, err := Build(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestNewLanguageModel_ModelSelection(t *testing.T) {
	cfg := localConfig(t)
	cfg.Backends[domain.BackendOllama]["model"] = "mistral"

	m, err := NewLanguageModel(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", m.Name())
}

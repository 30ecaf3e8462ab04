package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Backend names recognised by the factory.
const (
	BackendOpenAI      = "openai"
	BackendAnthropic   = "anthropic"
	BackendOllama      = "ollama"
	BackendHashing     = "hashing"
	BackendMemory      = "memory"
	BackendSQLite      = "sqlite"
	BackendSQLiteFTS   = "sqlite_fts"
	BackendQdrant      = "qdrant"
	BackendMeilisearch = "meilisearch"
	BackendPGVector    = "pgvector"
)

// Default configuration values.
const (
	DefaultLLMBackend         = BackendOpenAI
	DefaultLLMModel           = "gpt-4o-mini"
	DefaultLLMTemperature     = 0.7
	DefaultLLMMaxTokens       = 1000
	DefaultEmbedderBackend    = BackendOpenAI
	DefaultEmbedderModel      = "text-embedding-3-small"
	DefaultEmbeddingDimension = 1536
	DefaultVectorDBBackend    = BackendSQLite
	DefaultCollection         = "context_search"
	DefaultTopK               = 5
	DefaultChunkSize          = 512
	DefaultChunkOverlap       = 50
	MaxTemperature            = 2.0
)

// Config is the fully resolved pipeline configuration.
type Config struct {
	LLMBackend     string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	EmbedderBackend    string
	EmbedderModel      string
	EmbeddingDimension int

	VectorDBBackend    string
	VectorDBCollection string

	TopK         int
	ChunkSize    int
	ChunkOverlap int

	// PromptTemplate is the user template; empty selects the default.
	PromptTemplate string
	// SystemPrompt replaces the default system prompt when non-empty.
	SystemPrompt string
	SiteName     string

	// PageTypes restricts indexing to these types. Empty indexes everything.
	PageTypes []string

	// APIRateLimit is requests per minute for the HTTP API. Zero disables it.
	APIRateLimit int

	AssistantEnabled bool

	// Backends maps a backend name to its own option mapping.
	Backends map[string]map[string]any
}

// Overrides holds user supplied values. Nil fields keep the default.
type Overrides struct {
	LLMBackend     *string  `toml:"LLM_BACKEND" yaml:"LLM_BACKEND"`
	LLMModel       *string  `toml:"LLM_MODEL" yaml:"LLM_MODEL"`
	LLMTemperature *float64 `toml:"LLM_TEMPERATURE" yaml:"LLM_TEMPERATURE"`
	LLMMaxTokens   *int     `toml:"LLM_MAX_TOKENS" yaml:"LLM_MAX_TOKENS"`

	EmbedderBackend    *string `toml:"EMBEDDER_BACKEND" yaml:"EMBEDDER_BACKEND"`
	EmbedderModel      *string `toml:"EMBEDDER_MODEL" yaml:"EMBEDDER_MODEL"`
	EmbeddingDimension *int    `toml:"EMBEDDING_DIMENSION" yaml:"EMBEDDING_DIMENSION"`

	VectorDBBackend    *string `toml:"VECTOR_DB_BACKEND" yaml:"VECTOR_DB_BACKEND"`
	VectorDBCollection *string `toml:"VECTOR_DB_COLLECTION" yaml:"VECTOR_DB_COLLECTION"`

	TopK         *int `toml:"TOP_K" yaml:"TOP_K"`
	ChunkSize    *int `toml:"CHUNK_SIZE" yaml:"CHUNK_SIZE"`
	ChunkOverlap *int `toml:"CHUNK_OVERLAP" yaml:"CHUNK_OVERLAP"`

	PromptTemplate *string `toml:"PROMPT_TEMPLATE" yaml:"PROMPT_TEMPLATE"`
	SystemPrompt   *string `toml:"SYSTEM_PROMPT" yaml:"SYSTEM_PROMPT"`
	SiteName       *string `toml:"SITE_NAME" yaml:"SITE_NAME"`

	PageTypes []string `toml:"PAGE_TYPES" yaml:"PAGE_TYPES"`

	APIRateLimit     *int  `toml:"API_RATE_LIMIT" yaml:"API_RATE_LIMIT"`
	AssistantEnabled *bool `toml:"ASSISTANT_ENABLED" yaml:"ASSISTANT_ENABLED"`

	Backends map[string]map[string]any `toml:"BACKEND_SETTINGS" yaml:"BACKEND_SETTINGS"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		LLMBackend:         DefaultLLMBackend,
		LLMModel:           DefaultLLMModel,
		LLMTemperature:     DefaultLLMTemperature,
		LLMMaxTokens:       DefaultLLMMaxTokens,
		EmbedderBackend:    DefaultEmbedderBackend,
		EmbedderModel:      DefaultEmbedderModel,
		EmbeddingDimension: DefaultEmbeddingDimension,
		VectorDBBackend:    DefaultVectorDBBackend,
		VectorDBCollection: DefaultCollection,
		TopK:               DefaultTopK,
		ChunkSize:          DefaultChunkSize,
		ChunkOverlap:       DefaultChunkOverlap,
		AssistantEnabled:   true,
		Backends: map[string]map[string]any{
			BackendOpenAI:      {"api_key": ""},
			BackendAnthropic:   {"api_key": ""},
			BackendOllama:      {"base_url": "http://localhost:11434"},
			BackendHashing:     {},
			BackendMemory:      {},
			BackendSQLite:      {"path": ""},
			BackendSQLiteFTS:   {"path": "", "store_embeddings": false},
			BackendQdrant:      {"url": "http://localhost:6333", "api_key": ""},
			BackendMeilisearch: {"url": "http://localhost:7700", "api_key": "", "store_embeddings": false},
			BackendPGVector:    {"connection_string": ""},
		},
	}
}

// Resolve merges overrides onto defaults field by field and validates the
// result. BACKEND_SETTINGS is merged per backend name, so overriding one
// option of a backend keeps its other defaults.
func Resolve(defaults Config, o Overrides) (Config, error) {
	cfg := defaults
	setString(&cfg.LLMBackend, o.LLMBackend)
	setString(&cfg.LLMModel, o.LLMModel)
	if o.LLMTemperature != nil {
		cfg.LLMTemperature = *o.LLMTemperature
	}
	setInt(&cfg.LLMMaxTokens, o.LLMMaxTokens)
	setString(&cfg.EmbedderBackend, o.EmbedderBackend)
	setString(&cfg.EmbedderModel, o.EmbedderModel)
	setInt(&cfg.EmbeddingDimension, o.EmbeddingDimension)
	setString(&cfg.VectorDBBackend, o.VectorDBBackend)
	setString(&cfg.VectorDBCollection, o.VectorDBCollection)
	setInt(&cfg.TopK, o.TopK)
	setInt(&cfg.ChunkSize, o.ChunkSize)
	setInt(&cfg.ChunkOverlap, o.ChunkOverlap)
	setString(&cfg.PromptTemplate, o.PromptTemplate)
	setString(&cfg.SystemPrompt, o.SystemPrompt)
	setString(&cfg.SiteName, o.SiteName)
	if o.PageTypes != nil {
		cfg.PageTypes = slices.Clone(o.PageTypes)
	} else {
		cfg.PageTypes = slices.Clone(defaults.PageTypes)
	}
	setInt(&cfg.APIRateLimit, o.APIRateLimit)
	if o.AssistantEnabled != nil {
		cfg.AssistantEnabled = *o.AssistantEnabled
	}
	cfg.Backends = mergeBackends(defaults.Backends, o.Backends)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend-independent invariants of the configuration.
// Per-backend option schemas are checked by the backend factory.
func (c Config) Validate() error {
	switch {
	case c.LLMBackend == "":
		return fmt.Errorf("%w: LLM_BACKEND is required", ErrInvalidConfiguration)
	case c.EmbedderBackend == "":
		return fmt.Errorf("%w: EMBEDDER_BACKEND is required", ErrInvalidConfiguration)
	case c.VectorDBBackend == "":
		return fmt.Errorf("%w: VECTOR_DB_BACKEND is required", ErrInvalidConfiguration)
	case c.VectorDBCollection == "":
		return fmt.Errorf("%w: VECTOR_DB_COLLECTION is required", ErrInvalidConfiguration)
	case c.LLMTemperature < 0 || c.LLMTemperature > MaxTemperature:
		return fmt.Errorf("%w: LLM_TEMPERATURE must be in [0,2], got %g", ErrInvalidConfiguration, c.LLMTemperature)
	case c.LLMMaxTokens <= 0:
		return fmt.Errorf("%w: LLM_MAX_TOKENS must be positive, got %d", ErrInvalidConfiguration, c.LLMMaxTokens)
	case c.EmbeddingDimension <= 0:
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive, got %d", ErrInvalidConfiguration, c.EmbeddingDimension)
	case c.TopK <= 0:
		return fmt.Errorf("%w: TOP_K must be positive, got %d", ErrInvalidConfiguration, c.TopK)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: CHUNK_SIZE must be positive, got %d", ErrInvalidConfiguration, c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0,%d), got %d",
			ErrInvalidConfiguration, c.ChunkSize, c.ChunkOverlap)
	case c.APIRateLimit < 0:
		return fmt.Errorf("%w: API_RATE_LIMIT must not be negative, got %d", ErrInvalidConfiguration, c.APIRateLimit)
	}
	return nil
}

// BackendSettings returns a copy of the options for the named backend.
// The result is never nil.
func (c Config) BackendSettings(name string) map[string]any {
	out := make(map[string]any, len(c.Backends[name]))
	maps.Copy(out, c.Backends[name])
	return out
}

// IndexesPageType reports whether sources of the given type are indexed.
func (c Config) IndexesPageType(pageType string) bool {
	return len(c.PageTypes) == 0 || slices.Contains(c.PageTypes, pageType)
}

func mergeBackends(defaults, overrides map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(defaults)+len(overrides))
	for name, opts := range defaults {
		out[name] = maps.Clone(opts)
		if out[name] == nil {
			out[name] = map[string]any{}
		}
	}
	for name, opts := range overrides {
		if out[name] == nil {
			out[name] = map[string]any{}
		}
		maps.Copy(out[name], opts)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

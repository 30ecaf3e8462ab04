// Package backends builds the embedder, vector store and language model
// named in the configuration.
package backends

import (
	"errors"
	"fmt"
	"io"
	"time"

	hashingembed "github.com/custodia-labs/context-search/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/context-search/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/context-search/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/context-search/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/context-search/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/context-search/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/meilisearch"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/pgvector"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/sqlite"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Set holds the adapters built from one configuration.
type Set struct {
	Embedder driven.Embedder
	Store    driven.VectorStore
	LLM      driven.LanguageModel
	Ledger   driven.ChunkLedger
}

// Close releases all resources held by the set.
func (s *Set) Close() error {
	var errs []error
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.LLM != nil {
		errs = append(errs, s.LLM.Close())
	}
	if c, ok := s.Ledger.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	return errors.Join(errs...)
}

// Build validates the configuration and constructs every adapter. Nothing
// is contacted over the network.
func Build(cfg domain.Config) (*Set, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	set := &Set{}
	var err error

	if set.Embedder, err = NewEmbedder(cfg); err != nil {
		return nil, err
	}
	if set.LLM, err = NewLanguageModel(cfg); err != nil {
		set.Close()
		return nil, err
	}
	if set.Store, err = NewVectorStore(cfg, set.Embedder.Dimension()); err != nil {
		set.Close()
		return nil, err
	}
	if set.Ledger, err = newLedger(cfg, set.Store); err != nil {
		set.Close()
		return nil, err
	}
	return set, nil
}

// NewEmbedder creates the embedder named by EMBEDDER_BACKEND.
func NewEmbedder(cfg domain.Config) (driven.Embedder, error) {
	settings := Settings(cfg, cfg.EmbedderBackend)
	model := cfg.EmbedderModel
	if model == domain.DefaultEmbedderModel && cfg.EmbedderBackend != domain.BackendOpenAI {
		model = ""
	}

	switch cfg.EmbedderBackend {
	case domain.BackendOpenAI:
		e, err := openaiembed.NewEmbedder(openaiembed.Config{
			APIKey:     stringValue(settings, "api_key"),
			BaseURL:    stringValue(settings, "base_url"),
			Model:      model,
			Timeout:    timeout(settings),
			Dimensions: cfg.EmbeddingDimension,
		})
		if err != nil {
			return nil, err
		}
		return e, nil

	case domain.BackendOllama:
		concurrency, _ := intValue(settings["concurrency"])
		if m := stringValue(settings, "model"); m != "" {
			model = m
		}
		return ollamaembed.NewEmbedder(ollamaembed.Config{
			BaseURL:     stringValue(settings, "base_url"),
			Model:       model,
			Timeout:     timeout(settings),
			Dimensions:  cfg.EmbeddingDimension,
			Concurrency: concurrency,
		}), nil

	case domain.BackendHashing:
		stopwords := true
		if v, ok := settings["stopwords"].(bool); ok {
			stopwords = v
		}
		e, err := hashingembed.NewEmbedder(cfg.EmbeddingDimension, hashingembed.WithStopwords(stopwords))
		if err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedder backend: %s", domain.ErrInvalidConfiguration, cfg.EmbedderBackend)
	}
}

// NewLanguageModel creates the language model named by LLM_BACKEND. The
// ollama "model" option overrides LLM_MODEL.
func NewLanguageModel(cfg domain.Config) (driven.LanguageModel, error) {
	settings := Settings(cfg, cfg.LLMBackend)
	model := cfg.LLMModel
	if model == domain.DefaultLLMModel && cfg.LLMBackend != domain.BackendOpenAI {
		model = ""
	}

	switch cfg.LLMBackend {
	case domain.BackendOpenAI:
		m, err := openaillm.NewLanguageModel(openaillm.Config{
			APIKey:  stringValue(settings, "api_key"),
			BaseURL: stringValue(settings, "base_url"),
			Model:   model,
			Timeout: timeout(settings),
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	case domain.BackendAnthropic:
		m, err := anthropicllm.NewLanguageModel(anthropicllm.Config{
			APIKey:  stringValue(settings, "api_key"),
			BaseURL: stringValue(settings, "base_url"),
			Model:   model,
			Timeout: timeout(settings),
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	case domain.BackendOllama:
		if m := stringValue(settings, "model"); m != "" {
			model = m
		}
		return ollamallm.NewLanguageModel(ollamallm.Config{
			BaseURL: stringValue(settings, "base_url"),
			Model:   model,
			Timeout: timeout(settings),
		}), nil

	default:
		return nil, fmt.Errorf("%w: unsupported LLM backend: %s", domain.ErrInvalidConfiguration, cfg.LLMBackend)
	}
}

// NewVectorStore creates the store named by VECTOR_DB_BACKEND for vectors
// of the given dimension.
func NewVectorStore(cfg domain.Config, dimension int) (driven.VectorStore, error) {
	settings := Settings(cfg, cfg.VectorDBBackend)

	switch cfg.VectorDBBackend {
	case domain.BackendMemory:
		return memory.NewVectorStore(dimension), nil

	case domain.BackendSQLite:
		store, err := sqlite.NewVectorStore(stringValue(settings, "path"), cfg.VectorDBCollection)
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.BackendSQLiteFTS:
		store, err := sqlite.NewTextStore(stringValue(settings, "path"), cfg.VectorDBCollection,
			boolValue(settings, "store_embeddings"))
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.BackendQdrant:
		return qdrant.NewVectorStore(qdrant.Config{
			URL:        stringValue(settings, "url"),
			APIKey:     stringValue(settings, "api_key"),
			Collection: cfg.VectorDBCollection,
			Dimension:  dimension,
			Timeout:    timeout(settings),
		}), nil

	case domain.BackendMeilisearch:
		return meilisearch.NewStore(meilisearch.Config{
			URL:             stringValue(settings, "url"),
			APIKey:          stringValue(settings, "api_key"),
			Index:           cfg.VectorDBCollection,
			StoreEmbeddings: boolValue(settings, "store_embeddings"),
			Dimension:       dimension,
			Timeout:         timeout(settings),
		}), nil

	case domain.BackendPGVector:
		store, err := pgvector.NewVectorStore(pgvector.Config{
			ConnectionString: stringValue(settings, "connection_string"),
			Collection:       cfg.VectorDBCollection,
			Dimension:        dimension,
			Timeout:          timeout(settings),
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vector store backend: %s", domain.ErrInvalidConfiguration, cfg.VectorDBBackend)
	}
}

// newLedger uses the store's own ledger when it has one. Remote stores
// keep their ledger in the default SQLite database.
func newLedger(cfg domain.Config, store driven.VectorStore) (driven.ChunkLedger, error) {
	if s, ok := store.(interface{ Ledger() driven.ChunkLedger }); ok {
		return s.Ledger(), nil
	}
	ledger, err := sqlite.NewLedger("", cfg.VectorDBCollection)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func timeout(settings map[string]any) time.Duration {
	if n, ok := intValue(settings["timeout"]); ok && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}

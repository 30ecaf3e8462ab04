package main

import (
	"context"
	"fmt"

	"github.com/custodia-labs/context-search/internal/adapters/driven/backends"
	"github.com/custodia-labs/context-search/internal/adapters/driven/config/file"
	"github.com/custodia-labs/context-search/internal/adapters/driving/cli"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/core/services"
	"github.com/custodia-labs/context-search/internal/logger"
	"github.com/custodia-labs/context-search/internal/postprocessors/chunker"
)

// bootstrap wires the core services from configuration.
type bootstrap struct {
	// promptDir overrides the prompt directory; empty uses the default.
	promptDir string
}

var _ cli.Bootstrapper = (*bootstrap)(nil)

func (b *bootstrap) LoadConfig(path string) (domain.Config, error) {
	store, err := file.NewConfigStore(path)
	if err != nil {
		return domain.Config{}, err
	}
	logger.Debug("Loading config from %s", store.Path())
	return store.Load()
}

func (b *bootstrap) RenderConfig(cfg domain.Config) (string, error) {
	out, err := file.Render(cfg)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *bootstrap) Build(_ context.Context, cfg domain.Config) (*cli.Services, error) {
	done := logger.Timed("Building services")
	defer done()

	set, err := backends.Build(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := b.wire(cfg, set)
	if err != nil {
		set.Close() //nolint:errcheck
		return nil, err
	}
	return svc, nil
}

func (b *bootstrap) wire(cfg domain.Config, set *backends.Set) (*cli.Services, error) {
	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}

	prompts, err := b.promptBuilder(cfg)
	if err != nil {
		return nil, err
	}

	genOpts, err := driven.OptionsFromMap(map[string]any{
		"temperature": cfg.LLMTemperature,
		"max_tokens":  cfg.LLMMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	retrieval := services.NewRetrievalService(set.Embedder, set.Store, cfg.TopK)
	generation := services.NewGenerationService(set.LLM, prompts, genOpts)

	logger.Debug("Backends: embedder=%s store=%s llm=%s (text search: %t)",
		cfg.EmbedderBackend, cfg.VectorDBBackend, cfg.LLMBackend, retrieval.UsesTextSearch())

	return &cli.Services{
		Config:    cfg,
		Query:     services.NewQueryService(retrieval, generation),
		Retrieval: retrieval,
		Index:     services.NewIndexingService(retrieval, splitter, set.Ledger, cfg.PageTypes),
		Health:    services.NewHealthService(set.Embedder, set.Store, set.LLM),
		Close:     set.Close,
	}, nil
}

// promptBuilder resolves each prompt from the configuration first, then the
// prompt files, then the built-in default.
func (b *bootstrap) promptBuilder(cfg domain.Config) (*services.PromptBuilder, error) {
	store, err := file.NewPromptStore(b.promptDir)
	if err != nil {
		return nil, err
	}

	system := cfg.SystemPrompt
	if system == "" {
		if system, err = store.Load(driven.PromptSystem); err != nil {
			return nil, fmt.Errorf("loading system prompt: %w", err)
		}
	}

	user := cfg.PromptTemplate
	if user == "" {
		if user, err = store.Load(driven.PromptUser); err != nil {
			return nil, fmt.Errorf("loading prompt template: %w", err)
		}
	}

	return services.NewPromptBuilder(system, user, cfg.SiteName)
}

package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
	"github.com/custodia-labs/context-search/internal/logger"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// HealthService probes the embedder, store and language model.
type HealthService struct {
	embedder driven.Embedder
	store    driven.VectorStore
	llm      driven.LanguageModel
}

// NewHealthService creates a health service.
func NewHealthService(embedder driven.Embedder, store driven.VectorStore, llm driven.LanguageModel) *HealthService {
	return &HealthService{embedder: embedder, store: store, llm: llm}
}

// Check probes the three backends concurrently.
func (s *HealthService) Check(ctx context.Context) domain.Health {
	var g errgroup.Group
	var embedderOK, storeOK, llmOK bool
	g.Go(func() error { embedderOK = s.embedder.IsAvailable(ctx); return nil })
	g.Go(func() error { storeOK = s.store.IsAvailable(ctx); return nil })
	g.Go(func() error { llmOK = s.llm.IsAvailable(ctx); return nil })
	_ = g.Wait()

	h := domain.NewHealth(embedderOK, storeOK, llmOK)
	logger.Debug("Health: %s (embedder=%s vector_db=%s llm=%s)", h.Status, h.Embedder, h.VectorDB, h.LLM)
	return h
}

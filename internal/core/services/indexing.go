package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/core/ports/driving"
	"github.com/custodia-labs/context-search/internal/logger"
)

// Ensure IndexingService implements the interface.
var _ driving.IndexService = (*IndexingService)(nil)

// IndexingService chunks sources and keeps the store free of stale chunks.
type IndexingService struct {
	retrieval driving.RetrievalService
	chunker   driven.Chunker
	ledger    driven.ChunkLedger
	accepts   func(pageType string) bool
}

// NewIndexingService creates an indexing service. pageTypes restricts
// which sources are indexed; empty indexes every source.
func NewIndexingService(
	retrieval driving.RetrievalService,
	chunker driven.Chunker,
	ledger driven.ChunkLedger,
	pageTypes []string,
) *IndexingService {
	cfg := domain.Config{PageTypes: pageTypes}
	return &IndexingService{
		retrieval: retrieval,
		chunker:   chunker,
		ledger:    ledger,
		accepts:   cfg.IndexesPageType,
	}
}

// IndexSource replaces the chunks of src. Chunk ids are deterministic, so
// re-indexing overwrites chunks in place; only chunks beyond the new count
// are deleted.
func (s *IndexingService) IndexSource(ctx context.Context, src domain.SourceDocument) (bool, error) {
	logger.Section("Indexing")
	if strings.TrimSpace(src.Ref) == "" {
		return false, fmt.Errorf("%w: source ref is required", domain.ErrInvalidInput)
	}
	if !s.accepts(src.Type) {
		logger.Debug("Skipping %s: page type %q not indexed", src.Ref, src.Type)
		return false, nil
	}

	previous, err := s.ledger.ChunkCount(ctx, src.Ref)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}

	chunks, err := s.chunker.Chunk(src.Ref, src.Text)
	if err != nil {
		return false, fmt.Errorf("chunk %s: %w", src.Ref, err)
	}
	logger.Debug("Source %s: %d chunks (previously %d)", src.Ref, len(chunks), previous)

	docs := make([]domain.IndexedDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = domain.IndexedDocument{
			ID:   c.ID,
			Text: c.Text,
			Metadata: map[string]any{
				domain.MetaSourceRef:  src.Ref,
				domain.MetaPageType:   src.Type,
				domain.MetaTitle:      src.Title,
				domain.MetaURL:        src.URL,
				domain.MetaChunkIndex: c.Index,
			},
		}
	}
	if err := s.retrieval.AddDocuments(ctx, docs); err != nil {
		return false, fmt.Errorf("index %s: %w", src.Ref, err)
	}

	if previous > len(chunks) {
		stale := s.chunker.ChunkIDs(src.Ref, previous)[len(chunks):]
		if err := s.retrieval.DeleteDocuments(ctx, stale); err != nil {
			return false, fmt.Errorf("delete stale chunks of %s: %w", src.Ref, err)
		}
	}

	if len(chunks) == 0 {
		err = s.ledger.Forget(ctx, src.Ref)
	} else {
		err = s.ledger.Record(ctx, src.Ref, len(chunks))
	}
	if err != nil {
		return false, fmt.Errorf("update ledger: %w", err)
	}
	return true, nil
}

// RemoveSource deletes every chunk of sourceRef. Unknown sources fail with
// domain.ErrNotFound.
func (s *IndexingService) RemoveSource(ctx context.Context, sourceRef string) error {
	count, err := s.ledger.ChunkCount(ctx, sourceRef)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: source %q", domain.ErrNotFound, sourceRef)
	}

	logger.Debug("Removing %d chunks of %s", count, sourceRef)
	if err := s.retrieval.DeleteDocuments(ctx, s.chunker.ChunkIDs(sourceRef, count)); err != nil {
		return fmt.Errorf("remove %s: %w", sourceRef, err)
	}
	if err := s.ledger.Forget(ctx, sourceRef); err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	return nil
}

// Rebuild empties the store and the ledger.
func (s *IndexingService) Rebuild(ctx context.Context) error {
	logger.Info("Rebuilding index")
	if err := s.retrieval.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.ledger.Reset(ctx); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

// Sources lists indexed source refs.
func (s *IndexingService) Sources(ctx context.Context) ([]string, error) {
	return s.ledger.Sources(ctx)
}

package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore/sqlite"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/postprocessors/chunker"
)

// TestPipeline indexes two pages with real offline adapters and asks a
// question through the whole chain.
func TestPipeline(t *testing.T) {
	ctx := context.Background()

	emb, err := hashing.NewEmbedder(256)
	require.NoError(t, err)
	store := memory.NewVectorStore(256)
	c, err := chunker.New()
	require.NoError(t, err)

	retrieval := NewRetrievalService(emb, store, 1)
	indexing := NewIndexingService(retrieval, c, store.Ledger(), nil)

	pages := []domain.SourceDocument{
		{
			Ref:   "sky",
			Title: "Why the sky is blue",
			URL:   "https://example.com/sky",
			Text:  "The sky looks blue because air molecules scatter blue sunlight more than red sunlight.",
		},
		{
			Ref:   "bread",
			Title: "Baking bread",
			URL:   "https://example.com/bread",
			Text:  "Knead the dough, let it rise twice, then bake the loaf in a hot oven.",
		},
	}
	for _, p := range pages {
		indexed, err := indexing.IndexSource(ctx, p)
		require.NoError(t, err)
		require.True(t, indexed)
	}

	llm := &stubLLM{answer: "Air scatters blue light."}
	prompts, err := NewPromptBuilder("", "", "Example")
	require.NoError(t, err)
	query := NewQueryService(retrieval, NewGenerationService(llm, prompts, driven.GenerateOptions{}))

	answer, err := query.Ask(ctx, "why is the sky blue", 0)
	require.NoError(t, err)

	assert.Equal(t, "Air scatters blue light.", answer.Text)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "Why the sky is blue", *answer.Sources[0].Title)
	assert.Equal(t, "https://example.com/sky", *answer.Sources[0].URL)
	assert.Contains(t, llm.prompt, "scatter blue sunlight")
	assert.NotContains(t, llm.prompt, "Knead")
}

func TestPipeline_EmptyIndex(t *testing.T) {
	ctx := context.Background()

	emb, err := hashing.NewEmbedder(64)
	require.NoError(t, err)
	store := memory.NewVectorStore(64)
	retrieval := NewRetrievalService(emb, store, 5)

	llm := &stubLLM{}
	prompts, err := NewPromptBuilder("", "", "")
	require.NoError(t, err)
	query := NewQueryService(retrieval, NewGenerationService(llm, prompts, driven.GenerateOptions{}))

	answer, err := query.Ask(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Equal(t, NoAnswerMessage, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, llm.calls)
}

// countingEmbedder counts single-text Embed calls on a real embedder.
type countingEmbedder struct {
	driven.Embedder
	mu     sync.Mutex
	embeds int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.embeds++
	e.mu.Unlock()
	return e.Embedder.Embed(ctx, text)
}

// TestPipeline_SkyScenario indexes one short page with 20-character chunks
// overlapping by 5 and retrieves the chunk about the sky on both the vector
// and the full-text path.
func TestPipeline_SkyScenario(t *testing.T) {
	const (
		ref      = "sky-page"
		text     = "The sky is blue. Grass is green."
		question = "What color is the sky?"
	)

	tests := []struct {
		name       string
		store      func(t *testing.T) (driven.VectorStore, driven.ChunkLedger)
		wantEmbeds int
	}{
		{
			name: "vector path",
			store: func(t *testing.T) (driven.VectorStore, driven.ChunkLedger) {
				store := memory.NewVectorStore(256)
				return store, store.Ledger()
			},
			wantEmbeds: 1,
		},
		{
			name: "text path",
			store: func(t *testing.T) (driven.VectorStore, driven.ChunkLedger) {
				store, err := sqlite.NewTextStore(filepath.Join(t.TempDir(), "fts.db"), "sky", false)
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				return store, store.Ledger()
			},
			wantEmbeds: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			hashEmb, err := hashing.NewEmbedder(256)
			require.NoError(t, err)
			emb := &countingEmbedder{Embedder: hashEmb}
			store, ledger := tt.store(t)

			c, err := chunker.New(chunker.WithChunkSize(20), chunker.WithOverlap(5))
			require.NoError(t, err)
			chunks, err := c.Chunk(ref, text)
			require.NoError(t, err)
			require.Equal(t, []string{"The sky is blue. Gra", ". Grass is green.", "n."},
				[]string{chunks[0].Text, chunks[1].Text, chunks[2].Text})

			retrieval := NewRetrievalService(emb, store, domain.DefaultTopK)
			indexing := NewIndexingService(retrieval, c, ledger, nil)
			indexed, err := indexing.IndexSource(ctx, domain.SourceDocument{
				Ref: ref, Title: "Colours", URL: "https://example.com/colours", Text: text,
			})
			require.NoError(t, err)
			require.True(t, indexed)

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, len(chunks), stats.DocumentCount)

			docs, err := retrieval.Retrieve(ctx, question, 1)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Contains(t, docs[0].Text, "sky")
			assert.Equal(t, chunker.ChunkIDs(ref, len(chunks))[0], docs[0].ID)
			assert.Equal(t, tt.wantEmbeds, emb.embeds)

			prompts, err := NewPromptBuilder("", "", "")
			require.NoError(t, err)
			llm := &stubLLM{answer: "The sky is blue."}
			answer, err := NewGenerationService(llm, prompts, driven.GenerateOptions{}).
				GenerateAnswer(ctx, question, docs)
			require.NoError(t, err)
			assert.Equal(t, "The sky is blue.", answer.Text)
			require.Len(t, answer.Sources, 1)
			assert.Equal(t, "Colours", *answer.Sources[0].Title)
		})
	}
}

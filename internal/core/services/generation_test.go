package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

func newGeneration(t *testing.T, llm *stubLLM) *GenerationService {
	t.Helper()
	prompts, err := NewPromptBuilder("system for {site_name}", "", "Docs")
	require.NoError(t, err)
	temp := 0.2
	return NewGenerationService(llm, prompts, driven.GenerateOptions{Temperature: &temp, MaxTokens: 100})
}

func TestGenerationService_GenerateAnswer(t *testing.T) {
	llm := &stubLLM{answer: "  Blue.  "}
	svc := newGeneration(t, llm)
	docs := []domain.RetrievedDocument{
		retrieved("a", "Sky", "https://example.com/sky", 0.9),
		retrieved("b", "", "", 0.4),
		retrieved("a", "Sky", "https://example.com/sky", 0.3),
	}

	answer, err := svc.GenerateAnswer(context.Background(), "why is the sky blue?", docs)
	require.NoError(t, err)

	assert.Equal(t, "Blue.", answer.Text)
	assert.Equal(t, "system for Docs", llm.system)
	assert.Contains(t, llm.prompt, "[Source 1: Sky]")
	assert.Contains(t, llm.prompt, "why is the sky blue?")
	assert.Equal(t, 100, llm.opts.MaxTokens)

	require.Len(t, answer.Sources, 3, "duplicates are kept")
	require.NotNil(t, answer.Sources[0].Title)
	assert.Equal(t, "Sky", *answer.Sources[0].Title)
	assert.Equal(t, "https://example.com/sky", *answer.Sources[0].URL)
	assert.InDelta(t, 0.9, answer.Sources[0].Score, 1e-9)
	assert.Nil(t, answer.Sources[1].Title)
	assert.Nil(t, answer.Sources[1].URL)
	assert.InDelta(t, 0.3, answer.Sources[2].Score, 1e-9)
}

func TestGenerationService_NoDocuments(t *testing.T) {
	llm := &stubLLM{}
	svc := newGeneration(t, llm)

	answer, err := svc.GenerateAnswer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswerMessage, answer.Text)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, llm.calls)
}

func TestGenerationService_GenerateError(t *testing.T) {
	svc := newGeneration(t, &stubLLM{err: errors.New("rate limited")})

	_, err := svc.GenerateAnswer(context.Background(), "q", []domain.RetrievedDocument{retrieved("a", "", "", 1)})
	require.Error(t, err)

	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "stub-llm", gerr.Backend)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestGenerationService_StreamAnswer(t *testing.T) {
	llm := &stubLLM{fragments: []domain.Fragment{{Text: "Bl"}, {Text: "ue."}, {Done: true}, {Text: "ignored"}}}
	svc := newGeneration(t, llm)

	stream, sources, err := svc.StreamAnswer(context.Background(), "q",
		[]domain.RetrievedDocument{retrieved("a", "Sky", "", 0.8)})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Sky", *sources[0].Title)

	frags := collect(stream)
	require.Len(t, frags, 3)
	assert.Equal(t, "Bl", frags[0].Text)
	assert.Equal(t, "ue.", frags[1].Text)
	assert.True(t, frags[2].Done)
}

func TestGenerationService_StreamNoDocuments(t *testing.T) {
	llm := &stubLLM{}
	svc := newGeneration(t, llm)

	stream, sources, err := svc.StreamAnswer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, sources)

	frags := collect(stream)
	require.Len(t, frags, 2)
	assert.Equal(t, NoAnswerMessage, frags[0].Text)
	assert.True(t, frags[1].Done)
	assert.Zero(t, llm.calls)
}

func TestGenerationService_StreamFragmentError(t *testing.T) {
	llm := &stubLLM{fragments: []domain.Fragment{{Text: "half"}, {Err: errors.New("dropped")}, {Text: "after"}}}
	svc := newGeneration(t, llm)

	stream, _, err := svc.StreamAnswer(context.Background(), "q", []domain.RetrievedDocument{retrieved("a", "", "", 1)})
	require.NoError(t, err)

	frags := collect(stream)
	require.Len(t, frags, 2)
	assert.ErrorIs(t, frags[1].Err, domain.ErrGenerationFailed)
}

func TestGenerationService_StreamStartError(t *testing.T) {
	svc := newGeneration(t, &stubLLM{err: errors.New("refused")})

	_, _, err := svc.StreamAnswer(context.Background(), "q", []domain.RetrievedDocument{retrieved("a", "", "", 1)})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRetrievalError tests matching and unwrapping of retrieval failures
func TestRetrievalError(t *testing.T) {
	cause := fmt.Errorf("dial: %w", ErrBackendUnavailable)
	err := fmt.Errorf("ask: %w", &RetrievalError{Cause: CauseEmbedding, Backend: "openai", Err: cause})

	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrGenerationFailed)

	var re *RetrievalError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, CauseEmbedding, re.Cause)
	assert.Contains(t, err.Error(), "embedding via openai")
}

// TestGenerationError tests matching and unwrapping of generation failures
func TestGenerationError(t *testing.T) {
	err := &GenerationError{Backend: "anthropic", Err: errors.New("status 500")}

	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.NotErrorIs(t, err, ErrRetrievalFailed)
	assert.Equal(t, "generation failed (anthropic): status 500", err.Error())
}

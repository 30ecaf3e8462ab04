package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, PointID(id))

	derived := PointID("page-42")
	_, err := uuid.Parse(derived)
	assert.NoError(t, err)
	assert.Equal(t, derived, PointID("page-42"))
	assert.NotEqual(t, derived, PointID("page-43"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, CheckDimension("memory", 3, 3))
	assert.ErrorIs(t, CheckDimension("memory", 3, 4), domain.ErrDimensionMismatch)
}

func TestMatches(t *testing.T) {
	meta := map[string]any{"page_type": "blog", "chunk_index": float64(2)}

	tests := []struct {
		name   string
		filter map[string]any
		want   bool
	}{
		{"nil filter", nil, true},
		{"string match", map[string]any{"page_type": "blog"}, true},
		{"string mismatch", map[string]any{"page_type": "news"}, false},
		{"int matches float", map[string]any{"chunk_index": 2}, true},
		{"number vs string", map[string]any{"chunk_index": "2"}, false},
		{"missing key", map[string]any{"title": "x"}, false},
		{"all keys", map[string]any{"page_type": "blog", "chunk_index": 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(meta, tt.filter))
		})
	}
}

func TestTopK(t *testing.T) {
	docs := []domain.RetrievedDocument{
		{ID: "b", Score: 0.5},
		{ID: "a", Score: 0.9},
		{ID: "c", Score: 0.5},
		{ID: "d", Score: 0.1},
	}

	got := TopK(docs, 3)

	assert.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

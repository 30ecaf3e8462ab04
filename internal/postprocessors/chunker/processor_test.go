package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p, err := New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.ChunkSize())
		}
		if p.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.Overlap())
		}
	})

	t.Run("custom values", func(t *testing.T) {
		p, err := New(WithChunkSize(500), WithOverlap(100))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ChunkSize() != 500 || p.Overlap() != 100 {
			t.Errorf("expected 500/100, got %d/%d", p.ChunkSize(), p.Overlap())
		}
	})

	invalid := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			if !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestProcessor_Name(t *testing.T) {
	p, _ := New()
	if p.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", p.Name())
	}
}

func TestSplit_Scenario(t *testing.T) {
	text := "The sky is blue. Grass is green."

	chunks, err := Split(text, 20, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"The sky is blue. Gra", ". Grass is green.", "n."}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("expected %q, got %q", want, chunks)
	}
}

func TestSplit_Empty(t *testing.T) {
	chunks, err := Split("", 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks == nil || len(chunks) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", chunks)
	}
}

func TestSplit_InvalidOverlap(t *testing.T) {
	_, err := Split("abc", 10, 10)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestSplit_Properties(t *testing.T) {
	texts := []string{
		"a",
		"short",
		strings.Repeat("abcdefghij", 37),
		"Ünïcödé tëxt wïth mültï-byte rünes, 日本語のテキストも含む。",
	}
	params := []struct{ size, overlap int }{
		{1, 0}, {5, 0}, {5, 4}, {20, 5}, {512, 50}, {7, 3},
	}

	for _, text := range texts {
		for _, pr := range params {
			chunks, err := Split(text, pr.size, pr.overlap)
			if err != nil {
				t.Fatalf("size=%d overlap=%d: %v", pr.size, pr.overlap, err)
			}

			// every chunk is at most size characters
			for i, c := range chunks {
				if n := len([]rune(c)); n > pr.size || n == 0 {
					t.Errorf("chunk %d has %d runes, size %d", i, n, pr.size)
				}
			}

			// dropping each chunk's overlap prefix reconstructs the input
			var b strings.Builder
			for i, c := range chunks {
				r := []rune(c)
				if i > 0 {
					skip := min(pr.overlap, len(r))
					r = r[skip:]
				}
				b.WriteString(string(r))
			}
			if b.String() != text {
				t.Errorf("size=%d overlap=%d: reconstruction mismatch", pr.size, pr.overlap)
			}

			// pure: a second call yields the same result
			again, _ := Split(text, pr.size, pr.overlap)
			if !reflect.DeepEqual(chunks, again) {
				t.Errorf("size=%d overlap=%d: not deterministic", pr.size, pr.overlap)
			}
		}
	}
}

func TestProcessor_Chunk(t *testing.T) {
	p, err := New(WithChunkSize(20), WithOverlap(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := p.Chunk("page-1", "  The sky   is blue.\n\nGrass is green.  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "The sky is blue. Gra" {
		t.Errorf("unexpected first chunk %q", chunks[0].Text)
	}
	for i, c := range chunks {
		if c.Index != i || c.SourceRef != "page-1" {
			t.Errorf("chunk %d has index %d ref %q", i, c.Index, c.SourceRef)
		}
		if c.ID != ChunkID("page-1", i) {
			t.Errorf("chunk %d id not reproducible", i)
		}
	}
}

func TestProcessor_Chunk_WithoutNormalisation(t *testing.T) {
	p, _ := New(WithChunkSize(4), WithOverlap(0), WithNormalisation(false))

	chunks, err := p.Chunk("ref", "a  b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "a  b" {
		t.Errorf("expected text kept verbatim, got %+v", chunks)
	}
}

func TestChunkID(t *testing.T) {
	if ChunkID("a", 0) != ChunkID("a", 0) {
		t.Error("expected stable ids")
	}
	if ChunkID("a", 0) == ChunkID("a", 1) {
		t.Error("expected distinct ids per index")
	}
	if ChunkID("a/1", 0) == ChunkID("a", 10) {
		t.Error("expected distinct ids per source")
	}

	ids := ChunkIDs("doc", 3)
	if len(ids) != 3 || ids[2] != ChunkID("doc", 2) {
		t.Errorf("unexpected ids %v", ids)
	}
}

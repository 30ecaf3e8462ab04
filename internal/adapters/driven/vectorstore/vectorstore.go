// Package vectorstore holds the ranking and filtering helpers shared by the
// vector store adapters in its subpackages.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// pointNamespace derives point ids for document ids that are not UUIDs.
var pointNamespace = uuid.MustParse("3b7e4c1a-9f2d-5e08-b6a1-2c4d8e0f7a93")

// DocIDField is the payload key holding the caller's document id when a
// backend stores points under a derived id.
const DocIDField = "doc_id"

// PointID returns id unchanged when it is a UUID and a stable UUIDv5
// derived from it otherwise. Qdrant and Meilisearch restrict id formats.
func PointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// Cosine returns the cosine similarity of a and b. Zero vectors score 0.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CheckDimension fails with domain.ErrDimensionMismatch when got != want.
func CheckDimension(backend string, want, got int) error {
	if want != got {
		return fmt.Errorf("%w: %s collection has dimension %d, got %d",
			domain.ErrDimensionMismatch, backend, want, got)
	}
	return nil
}

// Matches reports whether every filter entry equals the metadata value.
// Numbers compare by value regardless of their Go type, so a filter of
// int 3 matches a JSON-decoded 3.0.
func Matches(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// TopK sorts docs by descending score, ties by id, and truncates to k.
func TopK(docs []domain.RetrievedDocument, k int) []domain.RetrievedDocument {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
	if k >= 0 && len(docs) > k {
		docs = docs[:k]
	}
	return docs
}

// CloneMetadata returns a shallow copy, never nil.
func CloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

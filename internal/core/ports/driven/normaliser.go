package driven

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// Normaliser extracts plain text from raw content.
// Each normaliser handles specific MIME types (e.g., HTML, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers return 50; the plain-text fallback
	// returns 1-9.
	Priority() int

	// Normalise extracts the text of raw.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult is the output of normalisation.
type NormaliseResult struct {
	// Title is the title found in the content, or empty when it has none.
	Title string

	// Text is the extracted plain text.
	Text string
}

package driven

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a document.
// It keeps one normaliser per MIME type, the highest priority winning.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the matching normaliser.
	// Unregistered text/* types fall back to the text/plain normaliser.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// Supports reports whether a document of the MIME type can be normalised.
	Supports(mimeType string) bool

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}

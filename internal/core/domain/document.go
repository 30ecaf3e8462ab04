package domain

// Metadata keys attached to every indexed chunk.
const (
	MetaSourceRef  = "source_ref"
	MetaPageType   = "page_type"
	MetaTitle      = "title"
	MetaURL        = "url"
	MetaChunkIndex = "chunk_index"
)

// Chunk is a contiguous window of a source text.
// Chunks are immutable once produced.
type Chunk struct {
	// ID is derived from SourceRef and Index, so re-chunking the same
	// source reproduces the same ids.
	ID string

	// Text is the window content.
	Text string

	// Index is the zero-based position within the source.
	Index int

	// SourceRef identifies the source the chunk came from.
	SourceRef string
}

// IndexedDocument is the unit handed to a VectorStore.
type IndexedDocument struct {
	// ID is the chunk id.
	ID string

	// Text is the chunk text.
	Text string

	// Metadata holds arbitrary key-value pairs (title, url, page_type...).
	Metadata map[string]any

	// Embedding is nil when the store searches text without vectors.
	Embedding []float32
}

// RetrievedDocument is a ranked hit returned by a VectorStore.
// Scores are store specific and not comparable across store kinds.
type RetrievedDocument struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

// MetadataString returns the non-empty string value stored under key.
func (d RetrievedDocument) MetadataString(key string) (string, bool) {
	if d.Metadata == nil {
		return "", false
	}
	s, ok := d.Metadata[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// SourceDocument is plain text handed over by the host for indexing.
type SourceDocument struct {
	// Ref uniquely identifies the source (a page id, a file path).
	Ref string

	// Title is the human-readable title.
	Title string

	// URL is where the source can be read. May be empty.
	URL string

	// Type is the page type used for PAGE_TYPES filtering.
	Type string

	// Text is the full extracted text.
	Text string
}

// StoreStats summarises a vector store.
type StoreStats struct {
	DocumentCount int    `json:"document_count"`
	Backend       string `json:"backend"`
}

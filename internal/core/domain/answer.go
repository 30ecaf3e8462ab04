package domain

// Answer is a generated response with its attributions.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source attributes part of an answer to a retrieved document.
// Title and URL are nil when the document carried no such metadata.
type Source struct {
	Title *string `json:"title"`
	URL   *string `json:"url"`
	Score float64 `json:"score"`
}

// SourceFromDocument maps a retrieved document to its attribution.
func SourceFromDocument(doc RetrievedDocument) Source {
	src := Source{Score: doc.Score}
	if title, ok := doc.MetadataString(MetaTitle); ok {
		src.Title = &title
	}
	if url, ok := doc.MetadataString(MetaURL); ok {
		src.URL = &url
	}
	return src
}

// Fragment is one piece of a streamed answer.
// The final fragment of a stream has Done set, or Err set on failure.
type Fragment struct {
	Text string
	Done bool
	Err  error
}

// Availability strings reported by the health check.
const (
	Available   = "available"
	Unavailable = "unavailable"
)

// Health status values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Health is the liveness report of the three backends.
type Health struct {
	Status   string `json:"status"`
	Embedder string `json:"embedder"`
	VectorDB string `json:"vector_db"`
	LLM      string `json:"llm"`
}

// NewHealth builds a report from individual availability results.
func NewHealth(embedder, vectorDB, llm bool) Health {
	h := Health{
		Status:   HealthOK,
		Embedder: availability(embedder),
		VectorDB: availability(vectorDB),
		LLM:      availability(llm),
	}
	if !embedder || !vectorDB || !llm {
		h.Status = HealthDegraded
	}
	return h
}

// OK reports whether every backend is available.
func (h Health) OK() bool {
	return h.Status == HealthOK
}

func availability(ok bool) string {
	if ok {
		return Available
	}
	return Unavailable
}

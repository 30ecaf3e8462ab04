// Package qdrant provides a vector store adapter for the Qdrant REST API.
//
// Points are stored under vectorstore.PointID(id) with the original id,
// text and metadata in the payload. The collection is created on first
// write with cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Qdrant adapter.
type Config struct {
	// URL is the Qdrant REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Collection is the collection name.
	Collection string

	// Dimension is the vector size used when creating the collection.
	Dimension int

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// VectorStore stores documents as Qdrant points.
type VectorStore struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	collection string
	dimension  int

	mu      sync.Mutex
	ensured bool
}

// errNotFound marks a 404 from Qdrant.
var errNotFound = errors.New("not found")

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type collectionInfo struct {
	PointsCount int `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// NewVectorStore creates a Qdrant adapter. No request is made until the
// first operation.
func NewVectorStore(cfg Config) *VectorStore {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &VectorStore{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}
}

// AddDocuments upserts documents as points.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]point, 0, len(docs))
	for _, doc := range docs {
		if doc.Embedding == nil {
			return fmt.Errorf("%w: qdrant: document %s has no embedding", domain.ErrEmbedding, doc.ID)
		}
		if s.dimension > 0 {
			if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(doc.Embedding)); err != nil {
				return err
			}
		}
		points = append(points, point{
			ID:     vectorstore.PointID(doc.ID),
			Vector: doc.Embedding,
			Payload: map[string]any{
				vectorstore.DocIDField: doc.ID,
				"text":                 doc.Text,
				"metadata":             vectorstore.CloneMetadata(doc.Metadata),
			},
		})
	}

	if err := s.ensureCollection(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}

	return s.do(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Search returns the topK nearest points.
func (s *VectorStore) Search(
	ctx context.Context, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	if s.dimension > 0 {
		if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(embedding)); err != nil {
			return nil, err
		}
	}

	body := map[string]any{
		"vector":       embedding,
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for k, v := range filter {
			must = append(must, map[string]any{
				"key":   "metadata." + k,
				"match": map[string]any{"value": v},
			})
		}
		body["filter"] = map[string]any{"must": must}
	}

	var result []scoredPoint
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), body, &result)
	if errors.Is(err, errNotFound) {
		return []domain.RetrievedDocument{}, nil
	}
	if err != nil {
		return nil, err
	}

	docs := make([]domain.RetrievedDocument, 0, len(result))
	for _, p := range result {
		docs = append(docs, fromPayload(p))
	}
	return vectorstore.TopK(docs, topK), nil
}

func fromPayload(p scoredPoint) domain.RetrievedDocument {
	doc := domain.RetrievedDocument{
		ID:       fmt.Sprint(p.ID),
		Score:    p.Score,
		Metadata: map[string]any{},
	}
	if id, ok := p.Payload[vectorstore.DocIDField].(string); ok {
		doc.ID = id
	}
	if text, ok := p.Payload["text"].(string); ok {
		doc.Text = text
	}
	if meta, ok := p.Payload["metadata"].(map[string]any); ok {
		doc.Metadata = meta
	}
	return doc
}

// DeleteDocuments removes points by document id.
func (s *VectorStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = vectorstore.PointID(id)
	}
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"),
		map[string]any{"points": points}, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// DeleteAll drops the collection. It is recreated on the next write.
func (s *VectorStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.do(ctx, http.MethodDelete, s.collectionPath(""), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.ensured = false
	return nil
}

// IsAvailable checks that the server answers.
func (s *VectorStore) IsAvailable(ctx context.Context) bool {
	return s.do(ctx, http.MethodGet, "/", nil, nil) == nil
}

// Stats reports the number of points in the collection.
func (s *VectorStore) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{Backend: s.Name()}

	var info collectionInfo
	err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, &info)
	if errors.Is(err, errNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	stats.DocumentCount = info.PointsCount
	return stats, nil
}

// Name returns the backend name.
func (s *VectorStore) Name() string {
	return domain.BackendQdrant
}

// Close releases resources.
func (s *VectorStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// ensureCollection creates the collection with cosine distance if it does
// not exist and checks the vector size if it does.
func (s *VectorStore) ensureCollection(ctx context.Context, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	var info collectionInfo
	err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, &info)
	switch {
	case err == nil:
		if err := vectorstore.CheckDimension(s.Name(), info.Config.Params.Vectors.Size, size); err != nil {
			return err
		}
	case errors.Is(err, errNotFound):
		body := map[string]any{
			"vectors": map[string]any{"size": size, "distance": "Cosine"},
		}
		if err := s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	default:
		return err
	}

	s.ensured = true
	return nil
}

func (s *VectorStore) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + suffix
}

// do sends a JSON request and decodes the "result" field into out.
func (s *VectorStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		var envelope struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

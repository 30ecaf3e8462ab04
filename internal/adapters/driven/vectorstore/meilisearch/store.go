// Package meilisearch provides a full-text store adapter backed by the
// Meilisearch Go client.
//
// Meilisearch ranks raw query text itself, so the store satisfies
// driven.TextSearchable. Embeddings are sent as user-provided vectors only
// when StoreEmbeddings is set, which also enables Search.
package meilisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/custodia-labs/context-search/internal/adapters/driven/vectorstore"
	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure Store implements both interfaces.
var (
	_ driven.VectorStore    = (*Store)(nil)
	_ driven.TextSearchable = (*Store)(nil)
)

// Default configuration values.
const (
	DefaultURL          = "http://localhost:7700"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 50 * time.Millisecond

	embedderName = "default"
	primaryKey   = "id"
)

// filterable lists the metadata keys usable in Search filters.
var filterable = []string{
	"metadata." + domain.MetaSourceRef,
	"metadata." + domain.MetaPageType,
}

// Config holds configuration for the Meilisearch adapter.
type Config struct {
	// URL is the Meilisearch endpoint (default: http://localhost:7700).
	URL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Index is the index uid.
	Index string

	// StoreEmbeddings sends embeddings as user-provided vectors.
	StoreEmbeddings bool

	// Dimension is the embedder dimension, required with StoreEmbeddings.
	Dimension int

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// PollInterval is the delay between task status checks (default: 50ms).
	PollInterval time.Duration
}

// Store keeps documents in a Meilisearch index.
type Store struct {
	httpClient      *http.Client
	client          meilisearch.ServiceManager
	index           meilisearch.IndexManager
	storeEmbeddings bool
	dimension       int
	pollInterval    time.Duration

	mu         sync.Mutex
	configured bool
}

// errNotFound marks a missing index.
var errNotFound = errors.New("not found")

// NewStore creates a Meilisearch adapter. No request is made until the
// first operation.
func NewStore(cfg Config) *Store {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Index == "" {
		cfg.Index = domain.DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []meilisearch.Option{meilisearch.WithCustomClient(httpClient)}
	if cfg.APIKey != "" {
		opts = append(opts, meilisearch.WithAPIKey(cfg.APIKey))
	}
	client := meilisearch.New(strings.TrimRight(cfg.URL, "/"), opts...)

	return &Store{
		httpClient:      httpClient,
		client:          client,
		index:           client.Index(cfg.Index),
		storeEmbeddings: cfg.StoreEmbeddings,
		dimension:       cfg.Dimension,
		pollInterval:    cfg.PollInterval,
	}
}

// RequiresEmbeddingsAtIndexTime reports whether embeddings are stored.
func (s *Store) RequiresEmbeddingsAtIndexTime() bool {
	return s.storeEmbeddings
}

// AddDocuments upserts documents and waits for Meilisearch to index them.
func (s *Store) AddDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		record := map[string]any{
			"id":                   vectorstore.PointID(doc.ID),
			vectorstore.DocIDField: doc.ID,
			"text":                 doc.Text,
			"metadata":             vectorstore.CloneMetadata(doc.Metadata),
		}
		if s.storeEmbeddings {
			if doc.Embedding == nil {
				return fmt.Errorf("%w: meilisearch: document %s has no embedding", domain.ErrEmbedding, doc.ID)
			}
			if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(doc.Embedding)); err != nil {
				return err
			}
			record["_vectors"] = map[string]any{embedderName: doc.Embedding}
		}
		body = append(body, record)
	}

	if err := s.configure(ctx); err != nil {
		return err
	}
	return s.wait(ctx)(s.index.AddDocumentsWithContext(ctx, body, primaryKey))
}

// SearchText returns the topK hits for the raw query, scored by
// Meilisearch's ranking score in [0,1].
func (s *Store) SearchText(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	return s.search(ctx, query, &meilisearch.SearchRequest{
		Limit:            int64(topK),
		ShowRankingScore: true,
	}, topK)
}

// Search ranks by embedding through the user-provided embedder. It fails
// unless StoreEmbeddings is set.
func (s *Store) Search(
	ctx context.Context, embedding []float32, topK int, filter map[string]any,
) ([]domain.RetrievedDocument, error) {
	if !s.storeEmbeddings {
		return nil, fmt.Errorf("%w: meilisearch: vector search requires store_embeddings",
			domain.ErrInvalidConfiguration)
	}
	if err := vectorstore.CheckDimension(s.Name(), s.dimension, len(embedding)); err != nil {
		return nil, err
	}

	req := &meilisearch.SearchRequest{
		Vector:           embedding,
		Hybrid:           &meilisearch.SearchRequestHybrid{Embedder: embedderName, SemanticRatio: 1.0},
		Limit:            int64(topK),
		ShowRankingScore: true,
	}
	if expr := filterExpression(filter); expr != "" {
		req.Filter = expr
	}
	return s.search(ctx, "", req, topK)
}

func (s *Store) search(
	ctx context.Context, query string, req *meilisearch.SearchRequest, topK int,
) ([]domain.RetrievedDocument, error) {
	if topK <= 0 {
		return []domain.RetrievedDocument{}, nil
	}

	resp, err := s.index.SearchWithContext(ctx, query, req)
	if err = s.classify(err); errors.Is(err, errNotFound) {
		return []domain.RetrievedDocument{}, nil
	}
	if err != nil {
		return nil, err
	}

	hits, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.RetrievedDocument, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, fromHit(hit))
	}
	return vectorstore.TopK(docs, topK), nil
}

// decodeHits converts the client's hit values into plain maps.
func decodeHits(hits any) ([]map[string]any, error) {
	data, err := json.Marshal(hits)
	if err != nil {
		return nil, fmt.Errorf("encoding hits: %w", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding hits: %w", err)
	}
	return out, nil
}

func fromHit(hit map[string]any) domain.RetrievedDocument {
	doc := domain.RetrievedDocument{Metadata: map[string]any{}}
	doc.ID, _ = hit["id"].(string)
	if id, ok := hit[vectorstore.DocIDField].(string); ok {
		doc.ID = id
	}
	doc.Text, _ = hit["text"].(string)
	if meta, ok := hit["metadata"].(map[string]any); ok {
		doc.Metadata = meta
	}
	doc.Score, _ = hit["_rankingScore"].(float64)
	return doc
}

// filterExpression renders an equality filter, keys sorted.
func filterExpression(filter map[string]any) string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var value string
		switch v := filter[k].(type) {
		case string:
			value = strconv.Quote(v)
		default:
			value = fmt.Sprint(v)
		}
		parts = append(parts, "metadata."+k+" = "+value)
	}
	return strings.Join(parts, " AND ")
}

// DeleteDocuments removes documents by id.
func (s *Store) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = vectorstore.PointID(id)
	}
	err := s.wait(ctx)(s.index.DeleteDocumentsWithContext(ctx, keys))
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// DeleteAll removes every document from the index.
func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.wait(ctx)(s.index.DeleteAllDocumentsWithContext(ctx))
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// IsAvailable checks the health endpoint.
func (s *Store) IsAvailable(ctx context.Context) bool {
	_, err := s.client.HealthWithContext(ctx)
	return err == nil
}

// Stats reports the number of documents in the index.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{Backend: s.Name()}

	resp, err := s.index.GetStatsWithContext(ctx)
	if err = s.classify(err); errors.Is(err, errNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	stats.DocumentCount = int(resp.NumberOfDocuments)
	return stats, nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return domain.BackendMeilisearch
}

// Close releases resources.
func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// configure applies index settings once per process. Updating settings
// creates the index when it does not exist.
func (s *Store) configure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configured {
		return nil
	}

	attrs := filterable
	if err := s.wait(ctx)(s.index.UpdateFilterableAttributesWithContext(ctx, &attrs)); err != nil {
		return fmt.Errorf("configuring index: %w", err)
	}
	if s.storeEmbeddings {
		embedders := map[string]meilisearch.Embedder{
			embedderName: {Source: "userProvided", Dimensions: s.dimension},
		}
		if err := s.wait(ctx)(s.index.UpdateEmbeddersWithContext(ctx, embedders)); err != nil {
			return fmt.Errorf("configuring embedder: %w", err)
		}
	}
	s.configured = true
	return nil
}

// wait returns a func that blocks until an enqueued task finishes. It takes
// the enqueue call's results directly:
//
//	err := s.wait(ctx)(s.index.DeleteAllDocumentsWithContext(ctx))
func (s *Store) wait(ctx context.Context) func(*meilisearch.TaskInfo, error) error {
	return func(info *meilisearch.TaskInfo, err error) error {
		if err = s.classify(err); err != nil {
			return err
		}
		task, err := s.client.WaitForTaskWithContext(ctx, info.TaskUID, s.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return s.classify(err)
		}
		if task.Status == meilisearch.TaskStatusSucceeded {
			return nil
		}
		if task.Error.Code == "index_not_found" {
			return errNotFound
		}
		if task.Error.Message != "" {
			return fmt.Errorf("meilisearch task %d %s: %s", info.TaskUID, task.Status, task.Error.Message)
		}
		return fmt.Errorf("meilisearch task %d %s", info.TaskUID, task.Status)
	}
}

// classify maps client errors onto the domain: a 404 becomes errNotFound and
// a request that never got a response becomes domain.ErrBackendUnavailable.
func (s *Store) classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *meilisearch.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("meilisearch: %w", err)
	}
	switch {
	case apiErr.StatusCode == http.StatusNotFound:
		return errNotFound
	case apiErr.StatusCode == 0:
		return fmt.Errorf("%w: meilisearch: %w", domain.ErrBackendUnavailable, err)
	default:
		return fmt.Errorf("meilisearch error (status %d): %w", apiErr.StatusCode, err)
	}
}

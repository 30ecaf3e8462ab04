package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// fakeBootstrapper returns canned services.
type fakeBootstrapper struct {
	cfg       domain.Config
	loadErr   error
	buildErr  error
	services  *Services
	closed    bool
	loadedCfg string
}

func (f *fakeBootstrapper) LoadConfig(path string) (domain.Config, error) {
	f.loadedCfg = path
	if f.loadErr != nil {
		return domain.Config{}, f.loadErr
	}
	return f.cfg, nil
}

func (f *fakeBootstrapper) RenderConfig(cfg domain.Config) (string, error) {
	return "[llm]\nbackend = \"" + cfg.LLMBackend + "\"\n", nil
}

func (f *fakeBootstrapper) Build(_ context.Context, cfg domain.Config) (*Services, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.services.Config = cfg
	f.services.Close = func() error {
		f.closed = true
		return nil
	}
	return f.services, nil
}

type mockQueryService struct {
	answer    domain.Answer
	fragments []domain.Fragment
	err       error

	asked    string
	topK     int
	streamed bool
}

func (m *mockQueryService) Ask(_ context.Context, question string, topK int) (domain.Answer, error) {
	m.asked, m.topK = question, topK
	return m.answer, m.err
}

func (m *mockQueryService) AskStream(
	_ context.Context, question string, topK int,
) (<-chan domain.Fragment, []domain.Source, error) {
	m.asked, m.topK, m.streamed = question, topK, true
	if m.err != nil {
		return nil, nil, m.err
	}
	ch := make(chan domain.Fragment, len(m.fragments))
	for _, f := range m.fragments {
		ch <- f
	}
	close(ch)
	return ch, m.answer.Sources, nil
}

type mockRetrievalService struct {
	stats      domain.StoreStats
	textSearch bool
}

func (m *mockRetrievalService) Retrieve(context.Context, string, int) ([]domain.RetrievedDocument, error) {
	return nil, nil
}

func (m *mockRetrievalService) RetrieveFiltered(
	context.Context, string, int, map[string]any,
) ([]domain.RetrievedDocument, error) {
	return nil, nil
}

func (m *mockRetrievalService) AddDocuments(context.Context, []domain.IndexedDocument) error {
	return nil
}

func (m *mockRetrievalService) DeleteDocuments(context.Context, []string) error { return nil }

func (m *mockRetrievalService) DeleteAll(context.Context) error { return nil }

func (m *mockRetrievalService) Stats(context.Context) (domain.StoreStats, error) {
	return m.stats, nil
}

func (m *mockRetrievalService) UsesTextSearch() bool { return m.textSearch }

type mockIndexService struct {
	indexed   []domain.SourceDocument
	removed   []string
	rebuilt   bool
	known     map[string]bool
	indexErr  error
	unchanged bool
}

func (m *mockIndexService) IndexSource(_ context.Context, src domain.SourceDocument) (bool, error) {
	if m.indexErr != nil {
		return false, m.indexErr
	}
	m.indexed = append(m.indexed, src)
	return !m.unchanged, nil
}

func (m *mockIndexService) RemoveSource(_ context.Context, ref string) error {
	if !m.known[ref] {
		return domain.ErrNotFound
	}
	m.removed = append(m.removed, ref)
	return nil
}

func (m *mockIndexService) Rebuild(context.Context) error {
	m.rebuilt = true
	return nil
}

func (m *mockIndexService) Sources(context.Context) ([]string, error) {
	refs := make([]string, 0, len(m.known))
	for ref := range m.known {
		refs = append(refs, ref)
	}
	return refs, nil
}

type mockHealthService struct {
	health domain.Health
}

func (m *mockHealthService) Check(context.Context) domain.Health { return m.health }

// testServices holds the mocks behind a fake bootstrapper.
type testServices struct {
	boot      *fakeBootstrapper
	query     *mockQueryService
	retrieval *mockRetrievalService
	index     *mockIndexService
	health    *mockHealthService
}

// setupTestServices installs a fake bootstrapper and restores the previous
// one, along with every command flag, when the test ends.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		query:     &mockQueryService{},
		retrieval: &mockRetrievalService{stats: domain.StoreStats{Backend: "memory"}},
		index:     &mockIndexService{known: map[string]bool{}},
		health:    &mockHealthService{health: domain.NewHealth(true, true, true)},
	}
	ts.boot = &fakeBootstrapper{
		cfg: domain.Config{
			LLMBackend:         "echo",
			EmbedderBackend:    "hashing",
			VectorDBBackend:    "memory",
			VectorDBCollection: "docs",
		},
		services: &Services{
			Query:     ts.query,
			Retrieval: ts.retrieval,
			Index:     ts.index,
			Health:    ts.health,
		},
	}

	previous := bootstrapper
	SetBootstrapper(ts.boot)
	t.Cleanup(func() {
		bootstrapper = previous
		resetFlags(rootCmd)
	})
	return ts
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

var errBoom = errors.New("boom")

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure Ledger implements the interface.
var _ driven.ChunkLedger = (*Ledger)(nil)

// Ledger is an in-memory implementation of driven.ChunkLedger.
type Ledger struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{counts: make(map[string]int)}
}

// ChunkCount returns the recorded count for a source.
func (l *Ledger) ChunkCount(_ context.Context, sourceRef string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[sourceRef], nil
}

// Record stores the chunk count of a source.
func (l *Ledger) Record(_ context.Context, sourceRef string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[sourceRef] = count
	return nil
}

// Forget drops a source.
func (l *Ledger) Forget(_ context.Context, sourceRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, sourceRef)
	return nil
}

// Reset drops every source.
func (l *Ledger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[string]int)
	return nil
}

// Sources lists recorded sources in sorted order.
func (l *Ledger) Sources(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	refs := make([]string, 0, len(l.counts))
	for ref := range l.counts {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

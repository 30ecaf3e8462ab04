package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
)

// Ensure Ledger implements the interface.
var _ driven.ChunkLedger = (*Ledger)(nil)

// Ledger persists per-source chunk counts in the indexed_sources table.
type Ledger struct {
	db         *sql.DB
	collection string
	closer     io.Closer
}

// NewLedger opens a ledger in its own database. Remote stores use it so
// chunk counts survive restarts.
func NewLedger(path, collection string) (*Ledger, error) {
	s, err := open(path, collection, domain.BackendSQLite)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: s.db, collection: s.collection, closer: s.db}, nil
}

// Close closes the database if the ledger opened it.
func (l *Ledger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ChunkCount returns the recorded count, or zero for an unknown source.
func (l *Ledger) ChunkCount(ctx context.Context, sourceRef string) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT chunk_count FROM indexed_sources WHERE collection = ? AND source_ref = ?",
		l.collection, sourceRef).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading chunk count: %w", err)
	}
	return count, nil
}

// Record stores the chunk count of a source.
func (l *Ledger) Record(ctx context.Context, sourceRef string, count int) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO indexed_sources (collection, source_ref, chunk_count, indexed_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, source_ref) DO UPDATE SET
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at
	`, l.collection, sourceRef, count)
	if err != nil {
		return fmt.Errorf("recording chunk count: %w", err)
	}
	return nil
}

// Forget drops a source.
func (l *Ledger) Forget(ctx context.Context, sourceRef string) error {
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM indexed_sources WHERE collection = ? AND source_ref = ?", l.collection, sourceRef)
	if err != nil {
		return fmt.Errorf("forgetting source: %w", err)
	}
	return nil
}

// Reset drops every source of the collection.
func (l *Ledger) Reset(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "DELETE FROM indexed_sources WHERE collection = ?", l.collection)
	if err != nil {
		return fmt.Errorf("resetting ledger: %w", err)
	}
	return nil
}

// Sources lists recorded source refs in sorted order.
func (l *Ledger) Sources(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT source_ref FROM indexed_sources WHERE collection = ? ORDER BY source_ref", l.collection)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	refs := []string{}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return refs, nil
}

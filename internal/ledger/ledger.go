// Package ledger keeps the set of product identifiers that have already been
// reported. The set only grows: there is no way to remove an identifier.
package ledger

import (
	"context"
	"sort"
	"sync"

	scanerr "sjsage522/pricewatch/pkg/errors"
)

// Store persists the ledger between runs
type Store interface {
	// Load returns every identifier stored so far
	Load(ctx context.Context) ([]string, error)

	// Flush makes ids durable. ids is always the full set; stores may write
	// only what they are missing.
	Flush(ctx context.Context, ids []string) error

	// Close releases the store's resources
	Close() error
}

// Ledger is the in-memory seen set
type Ledger struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{ids: make(map[string]struct{})}
}

// Contains reports whether id has been recorded
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Record adds id and reports whether it was new. Recording twice is a no-op.
func (l *Ledger) Record(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return false
	}
	l.ids[id] = struct{}{}
	return true
}

// Len returns the number of recorded identifiers
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// IDs returns the recorded identifiers in sorted order
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadFrom merges everything in store into the ledger
func (l *Ledger) LoadFrom(ctx context.Context, store Store) error {
	ids, err := store.Load(ctx)
	if err != nil {
		return scanerr.NewLedger("failed to load seen products", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			l.ids[id] = struct{}{}
		}
	}
	return nil
}

// FlushTo writes the full set to store
func (l *Ledger) FlushTo(ctx context.Context, store Store) error {
	if err := store.Flush(ctx, l.IDs()); err != nil {
		return scanerr.NewLedger("failed to flush seen products", err)
	}
	return nil
}

// Package storage persists pre-render pagination results so repeated
// documents skip the measurement pass.
package storage

import (
	"context"
	"time"
)

// Entry is one cached pagination result, keyed by the content hash of the
// document and its page options.
type Entry struct {
	// Key is the content hash identifying the document and options.
	Key string

	// Pages is the total page count measured by the pre-render pass.
	Pages int

	// AnchorPages maps anchor ids to 1-based page numbers.
	AnchorPages map[string]int

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time
}

// Store defines the interface for pagination cache persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the entry for a key. Returns nil when no entry exists;
	// an error indicates a storage failure, not a miss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores an entry, replacing any existing entry with the same key.
	Put(ctx context.Context, entry *Entry) error

	// Prune removes entries created before the cutoff. Returns the number
	// of entries removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases resources held by the store. The store must not be
	// used after Close.
	Close() error
}

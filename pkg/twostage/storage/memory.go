package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory storage. This is the default
// backend; all cached pagination is lost on restart.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	// entries maps content hash to cached pagination.
	entries map[string]*Entry

	// mu protects access to entries.
	mu sync.RWMutex

	// ttl is how long entries stay valid (0 = no expiry).
	ttl time.Duration

	// maxEntries caps the cache size; the oldest entry is evicted when the
	// cap is reached (0 = unlimited).
	maxEntries int
}

// MemoryStoreConfig configures the memory store.
type MemoryStoreConfig struct {
	// TTL is how long entries stay valid. Default: 1 hour.
	TTL time.Duration

	// MaxEntries caps the cache size. Default: 1000.
	MaxEntries int
}

// NewMemoryStore creates an in-memory pagination cache with default settings.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(MemoryStoreConfig{})
}

// NewMemoryStoreWithConfig creates an in-memory cache with custom settings.
func NewMemoryStoreWithConfig(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1000
	}
	return &MemoryStore{
		entries:    make(map[string]*Entry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
	}
}

// Get implements Store. Expired entries count as misses and are removed
// lazily.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && time.Since(entry.CreatedAt) > m.ttl {
		m.mu.Lock()
		// Re-check under the write lock; a Put may have refreshed it.
		if cur, ok := m.entries[key]; ok && time.Since(cur.CreatedAt) > m.ttl {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, nil
	}
	return copyEntry(entry), nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.Key == "" {
		return fmt.Errorf("entry key cannot be empty")
	}

	stored := copyEntry(entry)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[entry.Key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}
	m.entries[entry.Key] = stored
	return nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if entry.CreatedAt.Before(olderThan) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current number of cached entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	return nil
}

// evictOldestLocked removes the entry with the oldest CreatedAt.
// Caller must hold the write lock.
func (m *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range m.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// copyEntry clones an entry including its anchor map, so callers cannot
// mutate cached state.
func copyEntry(e *Entry) *Entry {
	out := &Entry{
		Key:       e.Key,
		Pages:     e.Pages,
		CreatedAt: e.CreatedAt,
	}
	if e.AnchorPages != nil {
		out.AnchorPages = make(map[string]int, len(e.AnchorPages))
		for id, page := range e.AnchorPages {
			out.AnchorPages[id] = page
		}
	}
	return out
}

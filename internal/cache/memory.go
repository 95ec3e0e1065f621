package cache

import (
	"context"
	"sync"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// MemoryStore is an in-process CacheStore for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]prospect.CacheEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]prospect.CacheEntry)}
}

// Get returns the entry for key; ok is false on a miss.
func (m *MemoryStore) Get(_ context.Context, key string) (prospect.CacheEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok, nil
}

// Put overwrites the entry for key.
func (m *MemoryStore) Put(_ context.Context, key string, entry prospect.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

// All returns a copy of every stored entry.
func (m *MemoryStore) All(_ context.Context) (map[string]prospect.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]prospect.CacheEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

// Len reports the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

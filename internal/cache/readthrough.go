package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// Durable is the backing store the read-through layer mirrors.
type Durable interface {
	prospect.CacheStore
	All(ctx context.Context) (map[string]prospect.CacheEntry, error)
}

// ReadThrough keeps an in-process mirror of a durable store. The mirror
// starts empty and must be populated with Init (or Reload) before reads;
// it is never trusted across process restarts.
type ReadThrough struct {
	durable Durable
	logger  *zap.Logger

	mu          sync.RWMutex
	initialized bool
	mirror      map[string]prospect.CacheEntry
}

// NewReadThrough wraps durable. A nil logger falls back to a no-op.
func NewReadThrough(durable Durable, logger *zap.Logger) *ReadThrough {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadThrough{
		durable: durable,
		logger:  logger,
		mirror:  make(map[string]prospect.CacheEntry),
	}
}

// Init populates the mirror from durable storage once per process
// lifetime. Later calls are no-ops; use Reload to force a refresh.
func (r *ReadThrough) Init(ctx context.Context) error {
	r.mu.RLock()
	done := r.initialized
	r.mu.RUnlock()
	if done {
		return nil
	}
	return r.Reload(ctx)
}

// Reload replaces the mirror with the durable store's current contents.
func (r *ReadThrough) Reload(ctx context.Context) error {
	entries, err := r.durable.All(ctx)
	if err != nil {
		return fmt.Errorf("reload cache mirror: %w", err)
	}

	r.mu.Lock()
	r.mirror = entries
	r.initialized = true
	r.mu.Unlock()

	r.logger.Info("cache mirror loaded", zap.Int("entries", len(entries)))
	return nil
}

// Get serves from the mirror when possible and falls back to durable
// storage, caching what it finds.
func (r *ReadThrough) Get(ctx context.Context, key string) (prospect.CacheEntry, bool, error) {
	if err := r.Init(ctx); err != nil {
		return prospect.CacheEntry{}, false, err
	}

	r.mu.RLock()
	entry, ok := r.mirror[key]
	r.mu.RUnlock()
	if ok {
		return entry, true, nil
	}

	entry, ok, err := r.durable.Get(ctx, key)
	if err != nil || !ok {
		return entry, ok, err
	}
	r.mu.Lock()
	r.mirror[key] = entry
	r.mu.Unlock()
	return entry, true, nil
}

// Put writes through to durable storage first; the mirror only observes
// writes that actually persisted.
func (r *ReadThrough) Put(ctx context.Context, key string, entry prospect.CacheEntry) error {
	if err := r.durable.Put(ctx, key, entry); err != nil {
		return err
	}
	r.mu.Lock()
	r.mirror[key] = entry
	r.mu.Unlock()
	return nil
}

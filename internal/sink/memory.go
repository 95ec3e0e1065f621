package sink

import (
	"context"
	"sync"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// Memory records deliveries for inspection in tests.
type Memory struct {
	mu         sync.RWMutex
	deliveries []Delivery
	err        error
}

// Delivery captures one Deliver call.
type Delivery struct {
	Location string
	Entry    prospect.CacheEntry
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes every later Deliver return err.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Deliver records the call.
func (m *Memory) Deliver(_ context.Context, location string, entry prospect.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deliveries = append(m.deliveries, Delivery{Location: location, Entry: entry})
	return nil
}

// Deliveries returns the recorded calls.
func (m *Memory) Deliveries() []Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Delivery, len(m.deliveries))
	copy(out, m.deliveries)
	return out
}

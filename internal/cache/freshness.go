// Package cache persists the arbitrage result per (category, location)
// key and decides whether a cached entry is fresh enough to skip a
// recomputation.
package cache

import (
	"time"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// DefaultTTLDays is the freshness window before a key is recomputed.
const DefaultTTLDays = 30

// IsFresh reports whether entry was updated within ttlDays of now. An
// entry with no timestamp or no scored keywords is never fresh, so a
// half-written or migrated row always falls through to a recomputation.
func IsFresh(entry prospect.CacheEntry, ttlDays int, now time.Time) bool {
	if entry.LastUpdated.IsZero() || ttlDays <= 0 {
		return false
	}
	if len(entry.ScoredKeywords) == 0 {
		return false
	}
	return now.Sub(entry.LastUpdated) < time.Duration(ttlDays)*24*time.Hour
}

package prospect

import (
	"context"
	"errors"
	"time"
)

// ErrTaskNotFound signals that the requested task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// KeywordAPI fetches keyword and domain data from the external keyword
// data service. Implementations own all throttling and retry behavior;
// a partial result map is a valid outcome, not an error.
type KeywordAPI interface {
	FetchKeywords(ctx context.Context, keywords []string, country string) (map[string]KeywordRecord, error)
	FetchDomainMetrics(ctx context.Context, domain string, country string) (DomainMetrics, error)
}

// TaskQueue provides durable FIFO semantics for prospecting tasks.
// ClaimNext atomically moves the oldest pending task to processing before
// returning it; ok is false when no pending task exists.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
	ClaimNext(ctx context.Context) (task Task, ok bool, err error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, errText string) error
	Get(ctx context.Context, id string) (Task, error)
}

// CacheStore persists one CacheEntry per (category, location) key with
// overwrite semantics. ok is false on a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) (entry CacheEntry, ok bool, err error)
	Put(ctx context.Context, key string, entry CacheEntry) error
}

// Sink receives finished entries. Delivery failures never fail the task.
type Sink interface {
	Deliver(ctx context.Context, location string, entry CacheEntry) error
}

// Publisher pushes task-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes report artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

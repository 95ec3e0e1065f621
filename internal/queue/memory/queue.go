// Package memory provides an in-memory task queue for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// ErrNotFound signals that the requested task does not exist.
var ErrNotFound = prospect.ErrTaskNotFound

// Queue implements the task queue state machine over a map. FIFO order
// follows CreatedAt, matching the durable implementation.
type Queue struct {
	mu    sync.Mutex
	tasks map[string]prospect.Task
	now   func() time.Time
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tasks: make(map[string]prospect.Task),
		now:   time.Now,
	}
}

// NewQueueWithClock constructs a queue with an injected time source.
func NewQueueWithClock(now func() time.Time) *Queue {
	q := NewQueue()
	if now != nil {
		q.now = now
	}
	return q
}

// Enqueue stores task as pending.
func (q *Queue) Enqueue(_ context.Context, task prospect.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already enqueued", task.ID)
	}
	task.Status = prospect.TaskStatusPending
	if task.CreatedAt.IsZero() {
		task.CreatedAt = q.now()
	}
	q.tasks[task.ID] = task
	return nil
}

// ClaimNext moves the oldest pending task to processing and returns it.
func (q *Queue) ClaimNext(_ context.Context) (prospect.Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []prospect.Task
	for _, t := range q.tasks {
		if t.Status == prospect.TaskStatusPending {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return prospect.Task{}, false, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	task := pending[0]
	task.Status = prospect.TaskStatusProcessing
	q.tasks[task.ID] = task
	return task, true, nil
}

// Complete marks the task done.
func (q *Queue) Complete(_ context.Context, id string) error {
	return q.finish(id, prospect.TaskStatusCompleted, "")
}

// Fail marks the task failed with the given reason.
func (q *Queue) Fail(_ context.Context, id string, errText string) error {
	return q.finish(id, prospect.TaskStatusFailed, errText)
}

func (q *Queue) finish(id string, status prospect.TaskStatus, errText string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	task.Status = status
	task.ErrorMessage = errText
	at := q.now()
	task.ProcessedAt = &at
	q.tasks[id] = task
	return nil
}

// Get loads one task by id or returns ErrNotFound.
func (q *Queue) Get(_ context.Context, id string) (prospect.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return prospect.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return task, nil
}

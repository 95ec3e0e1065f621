// Package queue provides the durable FIFO task queue behind the
// prospecting consumer. Tasks move pending -> processing -> completed or
// failed; failed tasks are never retried automatically.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// ErrNotFound signals that the requested task does not exist.
var ErrNotFound = prospect.ErrTaskNotFound

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool used for task rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PostgresQueue stores tasks in a single table. The task body is kept as
// JSONB next to the lifecycle columns so claims and status flips never
// decode the payload.
type PostgresQueue struct {
	pool  dbPool
	table string
}

// NewPostgresQueue creates a Postgres-backed queue using the provided config.
func NewPostgresQueue(ctx context.Context, cfg PostgresConfig) (*PostgresQueue, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("queue.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "prospect_tasks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresQueue{pool: pool, table: table}, nil
}

// NewPostgresQueueWithPool constructs a queue from an existing pool
// (primarily for testing).
func NewPostgresQueueWithPool(pool dbPool, table string) (*PostgresQueue, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "prospect_tasks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresQueue{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (q *PostgresQueue) Close() {
	if q == nil || q.pool == nil {
		return
	}
	q.pool.Close()
}

// Enqueue inserts task as pending.
func (q *PostgresQueue) Enqueue(ctx context.Context, task prospect.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	task.Status = prospect.TaskStatusPending
	task.CreatedAt = createdAt
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, payload, status, created_at)
VALUES ($1, $2, $3, $4)`, q.table)
	if _, err := q.pool.Exec(ctx, query, task.ID, payload, prospect.TaskStatusPending, createdAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ClaimNext atomically flips the oldest pending task to processing and
// returns it. The status write lands before any work happens, so a crash
// mid-pipeline leaves an inspectable processing row rather than a lost
// task. SKIP LOCKED keeps a second consumer from claiming the same row.
func (q *PostgresQueue) ClaimNext(ctx context.Context) (prospect.Task, bool, error) {
	query := fmt.Sprintf(`
UPDATE %[1]s
SET status = $1
WHERE id = (
	SELECT id FROM %[1]s
	WHERE status = $2
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, payload, status, error_message, created_at, processed_at`, q.table)

	task, err := q.scanTask(q.pool.QueryRow(ctx, query, prospect.TaskStatusProcessing, prospect.TaskStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return prospect.Task{}, false, nil
	}
	if err != nil {
		return prospect.Task{}, false, fmt.Errorf("claim task: %w", err)
	}
	return task, true, nil
}

// Complete marks the task done.
func (q *PostgresQueue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, prospect.TaskStatusCompleted, "")
}

// Fail marks the task failed with the given reason. Failed tasks stay in
// the table for operator inspection and manual resubmission.
func (q *PostgresQueue) Fail(ctx context.Context, id string, errText string) error {
	return q.finish(ctx, id, prospect.TaskStatusFailed, errText)
}

func (q *PostgresQueue) finish(ctx context.Context, id string, status prospect.TaskStatus, errText string) error {
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, error_message = NULLIF($2, ''), processed_at = $3
WHERE id = $4`, q.table)

	tag, err := q.pool.Exec(ctx, query, status, errText, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get loads one task by id or returns ErrNotFound.
func (q *PostgresQueue) Get(ctx context.Context, id string) (prospect.Task, error) {
	query := fmt.Sprintf(`
SELECT id, payload, status, error_message, created_at, processed_at
FROM %s WHERE id = $1`, q.table)

	task, err := q.scanTask(q.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return prospect.Task{}, ErrNotFound
	}
	if err != nil {
		return prospect.Task{}, fmt.Errorf("select task %s: %w", id, err)
	}
	return task, nil
}

func (q *PostgresQueue) scanTask(row pgx.Row) (prospect.Task, error) {
	var (
		id           string
		payload      []byte
		status       prospect.TaskStatus
		errorMessage *string
		createdAt    time.Time
		processedAt  *time.Time
	)
	if err := row.Scan(&id, &payload, &status, &errorMessage, &createdAt, &processedAt); err != nil {
		return prospect.Task{}, err
	}

	var task prospect.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return prospect.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	// Lifecycle columns win over whatever the payload snapshot says.
	task.ID = id
	task.Status = status
	task.CreatedAt = createdAt
	task.ProcessedAt = processedAt
	if errorMessage != nil {
		task.ErrorMessage = *errorMessage
	}
	return task, nil
}

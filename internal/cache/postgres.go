package cache

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

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool used for cache rows.
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
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore keeps one row per cache key with overwrite-on-refresh
// semantics. The entry payload is stored as JSONB next to a last_updated
// column so freshness checks never need to decode the payload.
type PostgresStore struct {
	pool  dbPool
	table string
}

// NewPostgresStore creates a Postgres-backed store using the provided config.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cache.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "arbitrage_cache"
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
	return &PostgresStore{pool: pool, table: table}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool dbPool, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "arbitrage_cache"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Get loads the entry for key. ok is false when the key has never been
// written.
func (s *PostgresStore) Get(ctx context.Context, key string) (prospect.CacheEntry, bool, error) {
	var entry prospect.CacheEntry
	query := fmt.Sprintf(`SELECT payload, last_updated FROM %s WHERE id = $1`, s.table)

	var payload []byte
	var lastUpdated time.Time
	err := s.pool.QueryRow(ctx, query, key).Scan(&payload, &lastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, fmt.Errorf("select cache entry: %w", err)
	}
	if err := json.Unmarshal(payload, &entry); err != nil {
		return entry, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	entry.LastUpdated = lastUpdated
	return entry, true, nil
}

// Put overwrites the entry for key.
func (s *PostgresStore) Put(ctx context.Context, key string, entry prospect.CacheEntry) error {
	if key == "" {
		return fmt.Errorf("cache key is required")
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, payload, last_updated)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET payload = EXCLUDED.payload, last_updated = EXCLUDED.last_updated`, s.table)

	if _, err := s.pool.Exec(ctx, query, key, payload, entry.LastUpdated); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// All streams every stored entry, keyed by id. Used by the read-through
// layer to repopulate its mirror after a restart.
func (s *PostgresStore) All(ctx context.Context) (map[string]prospect.CacheEntry, error) {
	query := fmt.Sprintf(`SELECT id, payload, last_updated FROM %s`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select cache entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]prospect.CacheEntry)
	for rows.Next() {
		var id string
		var payload []byte
		var lastUpdated time.Time
		if err := rows.Scan(&id, &payload, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		var entry prospect.CacheEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode cache entry %q: %w", id, err)
		}
		entry.LastUpdated = lastUpdated
		out[id] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return out, nil
}

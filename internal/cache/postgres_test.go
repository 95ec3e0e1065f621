package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

func sampleEntry(t time.Time) prospect.CacheEntry {
	return prospect.CacheEntry{
		ScoredKeywords: []prospect.ScoredKeyword{{
			Keyword:        "plumber orlando",
			SearchVolume:   100,
			CPC:            2.0,
			Competition:    0.2,
			ArbitrageScore: 952.38,
		}},
		DomainMetrics: prospect.DomainMetrics{Domain: "orlandoplumbingpros.com", DomainAuthority: 0.3},
		LastUpdated:   t,
	}
}

func TestPostgresStorePutUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "arbitrage_cache")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	entry := sampleEntry(now)
	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO arbitrage_cache").
		WithArgs("plumbing/fl-us", payload, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), "plumbing/fl-us", entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetRoundTrips(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "arbitrage_cache")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	entry := sampleEntry(now)
	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload, last_updated FROM arbitrage_cache").
		WithArgs("plumbing/fl-us").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "last_updated"}).AddRow(payload, now))

	got, ok, err := store.Get(context.Background(), "plumbing/fl-us")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.ScoredKeywords, got.ScoredKeywords)
	require.Equal(t, now, got.LastUpdated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMiss(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "arbitrage_cache")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload, last_updated FROM arbitrage_cache").
		WithArgs("roofing/tx-us").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "last_updated"}))

	_, ok, err := store.Get(context.Background(), "roofing/tx-us")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAll(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock, "arbitrage_cache")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	payload, err := json.Marshal(sampleEntry(now))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, payload, last_updated FROM arbitrage_cache").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payload", "last_updated"}).
			AddRow("plumbing/fl-us", payload, now))

	got, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Contains(t, got, "plumbing/fl-us")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresStoreWithPool(mock, "bad;table")
	require.Error(t, err)
}

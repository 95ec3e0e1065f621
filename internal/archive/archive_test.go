package archive

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
	"github.com/localrank/keyword-arbitrage/internal/storage/memory"
)

func testEntry() prospect.CacheEntry {
	return prospect.CacheEntry{
		ScoredKeywords: []prospect.ScoredKeyword{{
			Keyword:           "plumber orlando",
			SearchVolume:      100,
			CPC:               2.0,
			Competition:       0.2,
			ArbitrageScore:    952.38,
			EstimatedTime:     6.5,
			EstimatedVelocity: 98,
			ContentAngle:      "Quick wins / long-tail blog",
			Monetization:      "Lead gen blog post",
		}},
		DomainMetrics: prospect.DomainMetrics{
			Domain:            "orlandoplumbingpros.com",
			KeywordCountTop10: 41,
			Traffic:           1800.5,
		},
		LastUpdated: time.Unix(1700000000, 0).UTC(),
	}
}

func TestSaveWritesBothArtifacts(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	a := New(store, nil)

	uri, err := a.Save(context.Background(), "plumbing/fl-us", testEntry())
	require.NoError(t, err)
	require.Equal(t, "memory://reports/plumbing/fl-us.json", uri)

	jsonData, ok := store.Object("reports/plumbing/fl-us.json")
	require.True(t, ok)
	var decoded prospect.CacheEntry
	require.NoError(t, json.Unmarshal(jsonData, &decoded))
	require.Len(t, decoded.ScoredKeywords, 1)

	csvData, ok := store.Object("reports/plumbing/fl-us.csv")
	require.True(t, ok)
	records, err := csv.NewReader(strings.NewReader(string(csvData))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "plumber orlando", records[1][0])
	require.Equal(t, "orlandoplumbingpros.com", records[1][9])
}

func TestSaveWithoutStrategySkipsEstimates(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	a := New(store, nil)

	_, err := a.Save(context.Background(), "plumbing/fl-us", testEntry())
	require.NoError(t, err)

	_, ok := store.Object("reports/plumbing/fl-us.estimates.json")
	require.False(t, ok)
}

func TestSaveWritesEstimatesForQuickWins(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	a := New(store, nil)

	entry := testEntry()
	entry.ShortTermStrategy = &prospect.ShortTermStrategy{
		TopClusters: []prospect.ScoredKeyword{
			{Keyword: "plumber orlando", SearchVolume: 100, CPC: 2.0, Competition: 0.2},
			{Keyword: "emergency plumber orlando", SearchVolume: 50, CPC: 3.0, Competition: 0.3},
		},
		MaxTimeToImplement: 8.5,
	}

	_, err := a.Save(context.Background(), "plumbing/fl-us", entry)
	require.NoError(t, err)

	data, ok := store.Object("reports/plumbing/fl-us.estimates.json")
	require.True(t, ok)

	var decoded map[string]struct {
		Time struct {
			Low  float64 `json:"low"`
			High float64 `json:"high"`
			Base float64 `json:"base"`
		} `json:"t"`
		Velocity struct {
			Low  float64 `json:"low"`
			High float64 `json:"high"`
			Base float64 `json:"base"`
		} `json:"v"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	require.Contains(t, decoded, "low")
	require.Contains(t, decoded, "mid")
	low := decoded["low"]
	require.Greater(t, low.Time.High, low.Time.Low)
	require.GreaterOrEqual(t, low.Velocity.Low, 1.0)
	require.LessOrEqual(t, low.Velocity.High, 100.0)
}

func TestRenderCSVEmptyEntry(t *testing.T) {
	t.Parallel()

	data, err := RenderCSV(prospect.CacheEntry{})
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

func TestByOverlapGroupsByCommonWords(t *testing.T) {
	t.Parallel()

	got := ByOverlap([]string{
		"plumber orlando",
		"emergency plumber orlando",
		"roof repair orlando",
		"plumber orlando reviews",
	}, 2)

	require.Len(t, got, 2)
	require.Equal(t, "plumber orlando", got[0].Primary)
	require.Equal(t, []string{"emergency plumber orlando", "plumber orlando reviews"}, got[0].Related)
	require.Equal(t, "roof repair orlando", got[1].Primary)
	require.Empty(t, got[1].Related)
}

func TestByOverlapIsNotTransitive(t *testing.T) {
	t.Parallel()

	// "b c d" attaches to the primary "a b c"; "c d e" shares two words
	// with "b c d" but only one with the primary, so it opens its own
	// cluster.
	got := ByOverlap([]string{"a b c", "b c d", "c d e"}, 2)
	require.Len(t, got, 2)
	require.Equal(t, []string{"b c d"}, got[0].Related)
	require.Equal(t, "c d e", got[1].Primary)
}

func TestByOverlapDependsOnInputOrder(t *testing.T) {
	t.Parallel()

	forward := ByOverlap([]string{"a b c", "b c d", "c d e"}, 2)
	reverse := ByOverlap([]string{"c d e", "b c d", "a b c"}, 2)
	require.Len(t, forward, 2)
	require.Len(t, reverse, 2)
	require.NotEqual(t, forward[0].Primary, reverse[0].Primary)
}

func TestByOverlapEveryKeywordAppearsExactlyOnce(t *testing.T) {
	t.Parallel()

	keywords := []string{
		"plumber orlando",
		"emergency plumber orlando",
		"drain cleaning orlando",
		"drain cleaning service orlando",
		"water heater repair",
	}
	clusters := ByOverlap(keywords, 2)

	seen := make(map[string]int)
	for _, c := range clusters {
		seen[c.Primary]++
		for _, r := range c.Related {
			seen[r]++
		}
	}
	require.Len(t, seen, len(keywords))
	for kw, n := range seen {
		require.Equal(t, 1, n, "keyword %q", kw)
	}
}

func TestByOverlapEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, ByOverlap(nil, 2))
}

func TestAggregateComputesClusterMetrics(t *testing.T) {
	t.Parallel()

	pool := map[string]prospect.KeywordRecord{
		"plumber orlando":           {Keyword: "plumber orlando", SearchVolume: 100, CPC: 2.0, Competition: 0.2},
		"emergency plumber orlando": {Keyword: "emergency plumber orlando", SearchVolume: 50, CPC: 3.0, Competition: 0.3},
	}
	clusters := []prospect.Cluster{{
		Primary: "plumber orlando",
		Related: []string{"emergency plumber orlando"},
	}}

	got := Aggregate(clusters, pool)
	require.Len(t, got, 1)
	require.Equal(t, 150, got[0].AggregateSearchVolume)
	require.InDelta(t, 2.5, got[0].AverageCPC, 1e-9)
	require.InDelta(t, 0.25, got[0].AverageCompetition, 1e-9)
	// min(150, 600) * 2.5 / (0.25 + 0.01)
	require.InDelta(t, 150*2.5/0.26, got[0].ClusterValueScore, 1e-9)
}

func TestAggregateSkipsKeywordsMissingFromPool(t *testing.T) {
	t.Parallel()

	pool := map[string]prospect.KeywordRecord{
		"plumber orlando": {Keyword: "plumber orlando", SearchVolume: 100, CPC: 2.0, Competition: 0.2},
	}
	clusters := []prospect.Cluster{{
		Primary: "plumber orlando",
		Related: []string{"ghost keyword"},
	}}

	got := Aggregate(clusters, pool)
	require.Equal(t, 100, got[0].AggregateSearchVolume)
	require.InDelta(t, 2.0, got[0].AverageCPC, 1e-9)
}

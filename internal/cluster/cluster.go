// Package cluster groups scored keywords into overlap-based content
// clusters and computes per-cluster aggregates.
package cluster

import (
	"strings"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
	"github.com/localrank/keyword-arbitrage/internal/scoring"
)

// DefaultMinCommonWords is the vocabulary overlap required to attach a
// keyword to a cluster primary.
const DefaultMinCommonWords = 2

// ByOverlap groups keywords with a single greedy pass: each unused keyword
// opens a cluster and claims every later unused keyword sharing at least
// minCommonWords tokens with it. Membership is tested against the primary
// only, never other members, so the grouping is deterministic in input
// order but not transitive. Callers wanting reproducible clusters must fix
// the input order first.
func ByOverlap(keywords []string, minCommonWords int) []prospect.Cluster {
	if minCommonWords <= 0 {
		minCommonWords = DefaultMinCommonWords
	}

	used := make(map[string]struct{}, len(keywords))
	var clusters []prospect.Cluster

	for i, kw := range keywords {
		if _, ok := used[kw]; ok {
			continue
		}
		used[kw] = struct{}{}
		primaryWords := tokenSet(kw)
		c := prospect.Cluster{Primary: kw}

		for _, cand := range keywords[i+1:] {
			if _, ok := used[cand]; ok {
				continue
			}
			if countCommon(primaryWords, tokenSet(cand)) >= minCommonWords {
				c.Related = append(c.Related, cand)
				used[cand] = struct{}{}
			}
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// Aggregate fills in the volume, cpc, competition and value aggregates for
// each cluster from the pool records. Keywords missing from the pool do
// not contribute to the averages.
func Aggregate(clusters []prospect.Cluster, pool map[string]prospect.KeywordRecord) []prospect.Cluster {
	out := make([]prospect.Cluster, len(clusters))
	for i, c := range clusters {
		members := append([]string{c.Primary}, c.Related...)

		var volume, counted int
		var totalCPC, totalCompetition float64
		for _, kw := range members {
			rec, ok := pool[kw]
			if !ok {
				continue
			}
			volume += rec.SearchVolume
			totalCPC += rec.CPC
			totalCompetition += rec.Competition
			counted++
		}

		c.AggregateSearchVolume = volume
		if counted > 0 {
			c.AverageCPC = totalCPC / float64(counted)
			c.AverageCompetition = totalCompetition / float64(counted)
		}
		c.ClusterValueScore = scoring.ClusterValueScore(c.AggregateSearchVolume, c.AverageCPC, c.AverageCompetition)
		out[i] = c
	}
	return out
}

func tokenSet(keyword string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(keyword))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func countCommon(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

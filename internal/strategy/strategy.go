// Package strategy selects the short-term "quick win" subset from a
// scored keyword pool.
package strategy

import (
	"sort"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// MaxShortTermPicks bounds the quick-win subset.
const MaxShortTermPicks = 4

// SelectTopQuickWins picks the short-term plays with a two-stage sort:
// first the fastest-ranking keywords are taken, then only that subset is
// reordered by ROI so the most valuable of the fast ones lead. Sorting by
// value alone would surface high-competition keywords that take too long
// to rank.
func SelectTopQuickWins(scored []prospect.ScoredKeyword) prospect.ShortTermStrategy {
	byTime := append([]prospect.ScoredKeyword(nil), scored...)
	sort.SliceStable(byTime, func(i, j int) bool {
		return byTime[i].EstimatedTime < byTime[j].EstimatedTime
	})

	n := len(byTime)
	if n > MaxShortTermPicks {
		n = MaxShortTermPicks
	}
	picks := byTime[:n]

	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].ROI > picks[j].ROI
	})

	var maxTime float64
	for _, p := range picks {
		if p.EstimatedTime > maxTime {
			maxTime = p.EstimatedTime
		}
	}

	return prospect.ShortTermStrategy{
		TopClusters:        picks,
		MaxTimeToImplement: maxTime,
	}
}

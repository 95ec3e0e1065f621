// Package scoring computes the derived arbitrage metrics for keyword
// records: value-over-competition scores, time-to-rank and velocity
// estimates, classification labels, and ROI bounds.
package scoring

import (
	"math"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// competitionEpsilon keeps division defined at zero competition.
const competitionEpsilon = 0.01

// Tuning constants for the time-to-rank model. Time grows with
// competition and value and shrinks with domain authority.
const (
	timeModelK = 20.0
	timeModelB = 0.6
	timeModelD = 0.08
	timeModelS = 0.25
)

// Time impact shape: a boost below four weeks, neutral at eight, then a
// per-week penalty down to a floor.
const (
	idealMinWeeks      = 4.0
	idealMaxWeeks      = 8.0
	maxBoostMultiplier = 1.15
	penaltyPerWeek     = 0.02
	multiplierFloor    = 0.6
)

const (
	longTermTimeWeight = 0.002
	clusterVolumeCap   = 600.0
)

// ROI bounds assume a 1% to 3% conversion band on search volume.
const (
	lowROIRate  = 0.01
	highROIRate = 0.03
)

// ArbitrageScore balances value (volume times cpc) against competition.
func ArbitrageScore(volume int, cpc, competition float64) float64 {
	return float64(volume) * cpc / (competition + competitionEpsilon)
}

// VelocityScore grows as competition falls, capped at 100.
func VelocityScore(competition float64) float64 {
	return math.Min(100.0, 1.0/(competition*competition+0.001))
}

// EstimateTimeAndVelocity returns the estimated time to rank in weeks and
// the derived 1-100 velocity for a keyword against a domain with the given
// authority.
func EstimateTimeAndVelocity(competition, cpc float64, volume int, authority float64) (float64, int) {
	c := math.Max(0.01, competition)
	t := (timeModelK * c * (1 + timeModelB*math.Log10(cpc+1)) * (1 + timeModelD*math.Log10(float64(volume)+1))) / (authority + timeModelS)
	return t, velocityFromTime(t)
}

func velocityFromTime(t float64) int {
	return int(math.Round(clamp(104-t, 1, 100)))
}

// TimeImpactMultiplier weights an opportunity by its estimated time to
// rank: boosted when rankable within four weeks, neutral at eight, and
// penalized 2% per week past eight down to the floor.
func TimeImpactMultiplier(weeks float64) float64 {
	switch {
	case weeks <= idealMinWeeks:
		return maxBoostMultiplier
	case weeks <= idealMaxWeeks:
		slope := (1.0 - maxBoostMultiplier) / (idealMaxWeeks - idealMinWeeks)
		return maxBoostMultiplier + slope*(weeks-idealMinWeeks)
	default:
		return math.Max(multiplierFloor, 1.0-(weeks-idealMaxWeeks)*penaltyPerWeek)
	}
}

// BaseValueScore is the raw value of a keyword before competition and
// time adjustments.
func BaseValueScore(volume int, cpc float64) float64 {
	return float64(volume) * cpc
}

// LongTermArbitrageScore discounts base value by competition and a small
// time weight.
func LongTermArbitrageScore(baseValue, competition, weeks float64) float64 {
	return baseValue / (competition + competitionEpsilon + weeks*longTermTimeWeight)
}

// ClusterValueScore scores a cluster from its aggregates. Aggregate volume
// is capped so one huge head term cannot dominate the ranking.
func ClusterValueScore(aggregateVolume int, averageCPC, averageCompetition float64) float64 {
	capped := math.Min(float64(aggregateVolume), clusterVolumeCap)
	return capped * averageCPC / (averageCompetition + competitionEpsilon)
}

// CompetitionBand maps competition onto the 1-5 decile bands.
func CompetitionBand(competition float64) int {
	switch {
	case competition >= 0.00 && competition <= 0.10:
		return 1
	case competition >= 0.11 && competition <= 0.20:
		return 2
	case competition >= 0.21 && competition <= 0.30:
		return 3
	case competition >= 0.31 && competition <= 0.40:
		return 4
	default:
		return 5
	}
}

// ClassifyContentAngle picks a content format from competition.
func ClassifyContentAngle(competition float64) string {
	switch {
	case competition < 0.33:
		return "Quick wins / long-tail blog"
	case competition < 0.66:
		return "Comparison / listicle"
	default:
		return "In-depth guide / landing page"
	}
}

// ClassifyMonetization picks a monetization strategy from cpc.
func ClassifyMonetization(cpc float64) string {
	switch {
	case cpc > 5.0:
		return "Service / conversion page"
	case cpc >= 1.0:
		return "Lead gen blog post"
	default:
		return "Top-of-funnel explainer"
	}
}

// Scorer derives the full scored keyword for one pipeline run. Domain
// authority and the average job amount are fixed per run, not per keyword.
type Scorer struct {
	DomainAuthority float64
	AvgJobAmount    float64
}

// Score computes every derived field for rec.
func (s Scorer) Score(rec prospect.KeywordRecord) prospect.ScoredKeyword {
	estimatedTime, estimatedVelocity := EstimateTimeAndVelocity(rec.Competition, rec.CPC, rec.SearchVolume, s.DomainAuthority)
	baseValue := BaseValueScore(rec.SearchVolume, rec.CPC)
	lowROI := float64(rec.SearchVolume) * s.AvgJobAmount * lowROIRate
	highROI := float64(rec.SearchVolume) * s.AvgJobAmount * highROIRate

	return prospect.ScoredKeyword{
		Keyword:                rec.Keyword,
		SearchVolume:           rec.SearchVolume,
		CPC:                    rec.CPC,
		Competition:            rec.Competition,
		ArbitrageScore:         ArbitrageScore(rec.SearchVolume, rec.CPC, rec.Competition),
		VelocityScore:          VelocityScore(rec.Competition),
		TimeImpact:             TimeImpactMultiplier(estimatedTime),
		EstimatedTime:          estimatedTime,
		EstimatedVelocity:      estimatedVelocity,
		BaseValueScore:         baseValue,
		LongTermArbitrageScore: LongTermArbitrageScore(baseValue, rec.Competition, estimatedTime),
		CompetitionBand:        CompetitionBand(rec.Competition),
		ContentAngle:           ClassifyContentAngle(rec.Competition),
		Monetization:           ClassifyMonetization(rec.CPC),
		LowROI:                 lowROI,
		HighROI:                highROI,
		ROI:                    highROI,
	}
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}

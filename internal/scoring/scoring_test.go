package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

func TestArbitrageScoreKnownValue(t *testing.T) {
	t.Parallel()

	// (100 * 2.0) / (0.2 + 0.01)
	require.InDelta(t, 952.38, ArbitrageScore(100, 2.0, 0.2), 0.01)
}

func TestArbitrageScoreDecreasesWithCompetition(t *testing.T) {
	t.Parallel()

	prev := ArbitrageScore(500, 3.0, 0.0)
	for _, comp := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0} {
		cur := ArbitrageScore(500, 3.0, comp)
		require.Less(t, cur, prev, "competition %v", comp)
		prev = cur
	}
}

func TestVelocityScoreCappedAt100(t *testing.T) {
	t.Parallel()

	require.Equal(t, 100.0, VelocityScore(0))
	require.Equal(t, 100.0, VelocityScore(0.05))
	require.Less(t, VelocityScore(0.9), 2.0)
}

func TestEstimatedTimeNonDecreasingInCompetition(t *testing.T) {
	t.Parallel()

	var prev float64
	for _, comp := range []float64{0.0, 0.1, 0.2, 0.4, 0.6, 0.8, 1.0} {
		cur, _ := EstimateTimeAndVelocity(comp, 4.0, 300, 0.3)
		require.GreaterOrEqual(t, cur, prev, "competition %v", comp)
		prev = cur
	}
}

func TestEstimatedTimeDecreasesWithAuthority(t *testing.T) {
	t.Parallel()

	weak, _ := EstimateTimeAndVelocity(0.4, 4.0, 300, 0.0)
	strong, _ := EstimateTimeAndVelocity(0.4, 4.0, 300, 0.8)
	require.Greater(t, weak, strong)
}

func TestEstimatedVelocityStaysInBounds(t *testing.T) {
	t.Parallel()

	_, fast := EstimateTimeAndVelocity(0.0, 0.0, 0, 1.0)
	require.LessOrEqual(t, fast, 100)
	require.GreaterOrEqual(t, fast, 1)

	_, slow := EstimateTimeAndVelocity(1.0, 50.0, 100000, 0.0)
	require.GreaterOrEqual(t, slow, 1)
}

func TestTimeImpactMultiplier(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.15, TimeImpactMultiplier(2), 1e-9)
	require.InDelta(t, 1.15, TimeImpactMultiplier(4), 1e-9)
	require.InDelta(t, 1.075, TimeImpactMultiplier(6), 1e-9)
	require.InDelta(t, 1.0, TimeImpactMultiplier(8), 1e-9)
	require.InDelta(t, 0.9, TimeImpactMultiplier(13), 1e-9)
	require.InDelta(t, 0.6, TimeImpactMultiplier(60), 1e-9)
}

func TestLongTermArbitrageScore(t *testing.T) {
	t.Parallel()

	// 200 / (0.2 + 0.01 + 10*0.002)
	require.InDelta(t, 200.0/0.23, LongTermArbitrageScore(200, 0.2, 10), 1e-9)
}

func TestClusterValueScoreCapsVolume(t *testing.T) {
	t.Parallel()

	capped := ClusterValueScore(600, 2.0, 0.2)
	require.Equal(t, capped, ClusterValueScore(5000, 2.0, 0.2))
	require.InDelta(t, 600*2.0/0.21, capped, 1e-9)
}

func TestCompetitionBand(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, CompetitionBand(0.0))
	require.Equal(t, 1, CompetitionBand(0.10))
	require.Equal(t, 2, CompetitionBand(0.15))
	require.Equal(t, 3, CompetitionBand(0.25))
	require.Equal(t, 4, CompetitionBand(0.35))
	require.Equal(t, 5, CompetitionBand(0.41))
	require.Equal(t, 5, CompetitionBand(0.95))
}

func TestClassifyContentAngle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Quick wins / long-tail blog", ClassifyContentAngle(0.1))
	require.Equal(t, "Comparison / listicle", ClassifyContentAngle(0.5))
	require.Equal(t, "In-depth guide / landing page", ClassifyContentAngle(0.8))
}

func TestClassifyMonetization(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Service / conversion page", ClassifyMonetization(8.0))
	require.Equal(t, "Lead gen blog post", ClassifyMonetization(1.0))
	require.Equal(t, "Lead gen blog post", ClassifyMonetization(5.0))
	require.Equal(t, "Top-of-funnel explainer", ClassifyMonetization(0.4))
}

func TestScorerComposesAllFields(t *testing.T) {
	t.Parallel()

	s := Scorer{DomainAuthority: 0.3, AvgJobAmount: 450}
	got := s.Score(prospect.KeywordRecord{
		Keyword:      "plumber orlando",
		SearchVolume: 100,
		CPC:          2.0,
		Competition:  0.2,
	})

	require.Equal(t, "plumber orlando", got.Keyword)
	require.InDelta(t, 952.38, got.ArbitrageScore, 0.01)
	require.InDelta(t, 200.0, got.BaseValueScore, 1e-9)
	require.Equal(t, 2, got.CompetitionBand)
	require.Equal(t, "Quick wins / long-tail blog", got.ContentAngle)
	require.Equal(t, "Lead gen blog post", got.Monetization)
	require.InDelta(t, 100*450*0.01, got.LowROI, 1e-9)
	require.InDelta(t, 100*450*0.03, got.HighROI, 1e-9)
	require.Equal(t, got.HighROI, got.ROI)
	require.Greater(t, got.EstimatedTime, 0.0)
	require.Equal(t, TimeImpactMultiplier(got.EstimatedTime), got.TimeImpact)
	require.Equal(t, velocityFromTime(got.EstimatedTime), got.EstimatedVelocity)
}

func TestTimeRangeBrackets(t *testing.T) {
	t.Parallel()

	r := TimeRange(10)
	require.Equal(t, 10.0, r.Base)
	require.Less(t, r.Low, r.Base)
	require.Greater(t, r.High, r.Base)
}

func TestVelocityRangeInvertsTimeRange(t *testing.T) {
	t.Parallel()

	v := VelocityRange(Range{Low: 8, High: 12, Base: 10})
	require.Equal(t, 92.0, v.Low)
	require.Equal(t, 96.0, v.High)
	require.Equal(t, 94.0, v.Base)
	require.LessOrEqual(t, v.Low, v.High)
}

func TestEstimateFromStages(t *testing.T) {
	t.Parallel()

	got := EstimateFromStages([]StageInput{
		{Competition: 0.1, CPC: 2, SearchVolume: 100, Authority: 0.3},
		{Competition: 0.3, CPC: 4, SearchVolume: 300, Authority: 0.3},
		{Competition: 0.6, CPC: 8, SearchVolume: 900, Authority: 0.3},
		{Competition: 0.9, CPC: 10, SearchVolume: 2000, Authority: 0.3},
	})
	require.Len(t, got, 3)
	require.Contains(t, got, "low")
	require.Contains(t, got, "mid")
	require.Contains(t, got, "high")
	require.Less(t, got["low"].Time.Base, got["high"].Time.Base)
}

package scoring

import "math"

// Range is a low/base/high band around an estimate.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Base float64 `json:"base"`
}

// TimeRange bands an estimated time with a dynamic margin: wider for
// short estimates, narrowing slightly as the estimate grows.
func TimeRange(weeks float64) Range {
	margin := math.Max(0.1, math.Min(0.2, 0.2-0.02*math.Log10(weeks+1)))
	return Range{
		Low:  round1((1 - margin) * weeks),
		High: round1((1 + margin) * weeks),
		Base: round1(weeks),
	}
}

// VelocityRange inverts a time range onto the 1-100 velocity scale. A
// higher time bound yields the lower velocity bound.
func VelocityRange(t Range) Range {
	return Range{
		Low:  math.Round(clamp(104-t.High, 1, 100)),
		High: math.Round(clamp(104-t.Low, 1, 100)),
		Base: math.Round(clamp(104-t.Base, 1, 100)),
	}
}

// StageInput is one scenario for EstimateFromStages.
type StageInput struct {
	Competition  float64
	CPC          float64
	SearchVolume int
	Authority    float64
}

// StageEstimate holds the banded time and velocity for one scenario.
type StageEstimate struct {
	Time     Range `json:"t"`
	Velocity Range `json:"v"`
}

// EstimateFromStages computes banded estimates for up to three scenarios,
// keyed "low", "mid" and "high" in input order.
func EstimateFromStages(stages []StageInput) map[string]StageEstimate {
	keys := []string{"low", "mid", "high"}
	out := make(map[string]StageEstimate)
	for i, stage := range stages {
		if i >= len(keys) {
			break
		}
		weeks, _ := EstimateTimeAndVelocity(stage.Competition, stage.CPC, stage.SearchVolume, stage.Authority)
		t := TimeRange(weeks)
		out[keys[i]] = StageEstimate{Time: t, Velocity: VelocityRange(t)}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

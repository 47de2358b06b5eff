package scoring

import "math"

// NeutralConfidence is returned when the top two scores are equal.
const NeutralConfidence = 0.5

// DefaultSteepness controls how quickly confidence saturates with the score gap.
const DefaultSteepness = 10.0

// Confidence maps the gap between the first and second composite score to
// [0.5, 1). It is monotonic in gap and neutral at zero.
func Confidence(gap, steepness float64) float64 {
	if gap <= 0 || math.IsNaN(gap) {
		return NeutralConfidence
	}
	if steepness <= 0 {
		steepness = DefaultSteepness
	}
	return clamp01(NeutralConfidence + (1-NeutralConfidence)*(1-math.Exp(-steepness*gap)))
}

package scoring

import (
	"fmt"
	"math"

	"github.com/yourusername/kyotei-predictor/internal/models"
)

// Weights are the fixed coefficients of the composite score. They sum to 1.
type Weights struct {
	NationalWinRate float64
	LocalWinRate    float64
	Motor           float64
	Boat            float64
	StartTiming     float64
	Other           float64
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{
		NationalWinRate: 0.18,
		LocalWinRate:    0.12,
		Motor:           0.12,
		Boat:            0.08,
		StartTiming:     0.10,
		Other:           0.40,
	}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.NationalWinRate + w.LocalWinRate + w.Motor + w.Boat + w.StartTiming + w.Other
}

// OtherFactor supplies the residual factor for one entry, in [0,1].
// It sees the whole field so it can normalize relative to the race.
type OtherFactor interface {
	Score(entry models.Entry, field []models.Entry) float64
}

// OtherFactorFunc adapts a function to OtherFactor.
type OtherFactorFunc func(entry models.Entry, field []models.Entry) float64

// Score calls f.
func (f OtherFactorFunc) Score(entry models.Entry, field []models.Entry) float64 {
	return f(entry, field)
}

// NeutralFactor gives every entry the same residual value, so the residual
// weight shifts all scores equally and never changes the ranking.
type NeutralFactor struct {
	Value float64
}

// Score returns the constant value.
func (n NeutralFactor) Score(models.Entry, []models.Entry) float64 {
	return n.Value
}

// AuxiliaryFactor scores an entry from one auxiliary signal expressed as a
// 0..100 rate. Entries without the signal get Fallback.
type AuxiliaryFactor struct {
	Key      string
	Fallback float64
}

// Score returns the signal as a fraction.
func (a AuxiliaryFactor) Score(entry models.Entry, _ []models.Entry) float64 {
	v, ok := entry.Auxiliary[a.Key]
	if !ok {
		return a.Fallback
	}
	return percent(v)
}

// Residual factor names accepted by NewOtherFactor.
const (
	OtherNeutral     = "neutral"
	OtherNationalTop = "national_top2"
)

// NewOtherFactor returns the named residual factor. neutral is the constant
// value, and also the fallback for entries missing an auxiliary signal.
func NewOtherFactor(name string, neutral float64) (OtherFactor, error) {
	switch name {
	case OtherNeutral, "":
		return NeutralFactor{Value: neutral}, nil
	case OtherNationalTop:
		return AuxiliaryFactor{Key: models.AuxNationalTop2, Fallback: neutral}, nil
	default:
		return nil, fmt.Errorf("unknown residual factor %q", name)
	}
}

// Factors holds one entry's normalized inputs, each in [0,1].
type Factors struct {
	NationalWinRate float64 `json:"national_win_rate"`
	LocalWinRate    float64 `json:"local_win_rate"`
	Motor           float64 `json:"motor"`
	Boat            float64 `json:"boat"`
	StartTiming     float64 `json:"start_timing"`
	Other           float64 `json:"other"`
}

// Composite returns the weighted sum of the factors.
func (f Factors) Composite(w Weights) float64 {
	return f.NationalWinRate*w.NationalWinRate +
		f.LocalWinRate*w.LocalWinRate +
		f.Motor*w.Motor +
		f.Boat*w.Boat +
		f.StartTiming*w.StartTiming +
		f.Other*w.Other
}

// fieldRange is the min and max of one stat across the field.
type fieldRange struct {
	min, max float64
}

func rangeOf(entries []models.Entry, get func(models.Entry) float64) fieldRange {
	r := fieldRange{min: math.Inf(1), max: math.Inf(-1)}
	for _, e := range entries {
		v := get(e)
		r.min = math.Min(r.min, v)
		r.max = math.Max(r.max, v)
	}
	return r
}

// normalize maps v into [0,1] relative to the field; an equal field gives 0.5.
func (r fieldRange) normalize(v float64) float64 {
	if r.max-r.min <= 0 {
		return 0.5
	}
	return clamp01((v - r.min) / (r.max - r.min))
}

// percent converts a 0..100 rate to a fraction.
func percent(v float64) float64 {
	return clamp01(v / 100)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

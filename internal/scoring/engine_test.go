package scoring

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kyotei-predictor/internal/models"
)

func entry(lane int, national, local, motor, boat, st float64) models.Entry {
	return models.Entry{
		Lane:               lane,
		NationalWinRate:    models.Float(national),
		LocalWinRate:       models.Float(local),
		MotorIndex:         models.Float(motor),
		BoatIndex:          models.Float(boat),
		AverageStartTiming: models.Float(st),
	}
}

func equalField() []models.Entry {
	entries := make([]models.Entry, 6)
	for i := range entries {
		entries[i] = entry(i+1, 20, 20, 40, 40, 0.16)
	}
	return entries
}

func dominantLaneOne() []models.Entry {
	return []models.Entry{
		entry(1, 45, 30, 80, 70, 0.12),
		entry(2, 20, 15, 40, 35, 0.17),
		entry(3, 18, 14, 35, 30, 0.18),
		entry(4, 15, 12, 30, 32, 0.19),
		entry(5, 12, 10, 28, 25, 0.20),
		entry(6, 10, 8, 25, 22, 0.21),
	}
}

func randomField(r *rand.Rand) []models.Entry {
	entries := make([]models.Entry, 6)
	for i, lane := range r.Perm(6) {
		entries[i] = entry(lane+1, r.Float64()*100, r.Float64()*100, r.Float64()*60, r.Float64()*60, 0.1+r.Float64()*0.15)
	}
	return entries
}

func TestScoreRaceProducesPermutation(t *testing.T) {
	engine := NewEngine()
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		p, err := engine.ScoreRace(randomField(r))
		require.NoError(t, err)

		lanes := append([]int(nil), p.RankedLanes...)
		sort.Ints(lanes)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, lanes)
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
		assert.Len(t, p.Scores, 6)
	}
}

func TestScoreRaceIsIdempotent(t *testing.T) {
	engine := NewEngine()
	field := randomField(rand.New(rand.NewSource(7)))

	first, err := engine.ScoreRace(field)
	require.NoError(t, err)
	second, err := engine.ScoreRace(field)
	require.NoError(t, err)

	assert.Equal(t, first.RankedLanes, second.RankedLanes)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestEqualFieldUsesLaneOrder(t *testing.T) {
	p, err := NewEngine().ScoreRace(equalField())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, p.RankedLanes)
	assert.Equal(t, NeutralConfidence, p.Confidence)
}

func TestInputOrderDoesNotMatter(t *testing.T) {
	field := dominantLaneOne()
	reversed := make([]models.Entry, len(field))
	for i := range field {
		reversed[len(field)-1-i] = field[i]
	}

	a, err := NewEngine().ScoreRace(field)
	require.NoError(t, err)
	b, err := NewEngine().ScoreRace(reversed)
	require.NoError(t, err)

	assert.Equal(t, a.RankedLanes, b.RankedLanes)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestDominantLaneOneRanksFirst(t *testing.T) {
	p, err := NewEngine().ScoreRace(dominantLaneOne())
	require.NoError(t, err)

	assert.Equal(t, 1, p.RankedLanes[0])
	assert.Greater(t, p.Confidence, 0.5)
	assert.Equal(t, 1, p.RecommendedWin())
}

func TestScoringErrors(t *testing.T) {
	missing := dominantLaneOne()
	missing[3].BoatIndex = nil

	duplicate := dominantLaneOne()
	duplicate[5].Lane = 2

	outOfRange := dominantLaneOne()
	outOfRange[0].Lane = 7

	tests := []struct {
		name    string
		entries []models.Entry
		reason  string
		lane    int
	}{
		{"five entries", dominantLaneOne()[:5], ReasonRosterSize, 0},
		{"seven entries", append(dominantLaneOne(), entry(6, 1, 1, 1, 1, 0.2)), ReasonRosterSize, 0},
		{"empty", nil, ReasonRosterSize, 0},
		{"missing boat stat", missing, ReasonInvalidEntry, 4},
		{"duplicate lane", duplicate, ReasonDuplicateLane, 2},
		{"lane out of range", outOfRange, ReasonInvalidEntry, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewEngine().ScoreRace(tt.entries)
			assert.Nil(t, p)

			var se *ScoringError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.reason, se.Reason)
			assert.Equal(t, tt.lane, se.Lane)
			assert.ErrorIs(t, err, ErrInvalidRoster)
		})
	}
}

func TestMissingStatIsNotDefaulted(t *testing.T) {
	field := equalField()
	field[0].AverageStartTiming = nil

	_, err := NewEngine().ScoreRace(field)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AverageStartTiming missing")
}

func TestOtherFactorIsPluggable(t *testing.T) {
	// Favor lane 6 through the residual factor only.
	favorSix := OtherFactorFunc(func(e models.Entry, _ []models.Entry) float64 {
		if e.Lane == 6 {
			return 1
		}
		return 0
	})

	p, err := NewEngine(WithOtherFactor(favorSix)).ScoreRace(equalField())
	require.NoError(t, err)
	assert.Equal(t, 6, p.RankedLanes[0])
	assert.Greater(t, p.Confidence, NeutralConfidence)
}

func TestExplainFactorsAreNormalized(t *testing.T) {
	scores, err := NewEngine().Explain(dominantLaneOne())
	require.NoError(t, err)
	require.Len(t, scores, 6)

	one := scores[0]
	assert.Equal(t, 1, one.Lane)
	assert.InDelta(t, 0.45, one.Factors.NationalWinRate, 1e-9)
	assert.InDelta(t, 1.0, one.Factors.Motor, 1e-9)
	assert.InDelta(t, 1.0, one.Factors.StartTiming, 1e-9, "fastest start maps to 1")
	assert.InDelta(t, 0.0, scores[5].Factors.StartTiming, 1e-9, "slowest start maps to 0")
	assert.InDelta(t, 0.5, one.Factors.Other, 1e-9)
}

func TestConfidenceCurve(t *testing.T) {
	assert.Equal(t, NeutralConfidence, Confidence(0, DefaultSteepness))
	assert.Equal(t, NeutralConfidence, Confidence(-0.1, DefaultSteepness))

	prev := NeutralConfidence
	for _, gap := range []float64{0.001, 0.01, 0.05, 0.1, 0.3, 1} {
		c := Confidence(gap, DefaultSteepness)
		assert.Greater(t, c, prev, "confidence must grow with the gap")
		assert.LessOrEqual(t, c, 1.0)
		prev = c
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
}

func TestEngineConcurrentUse(t *testing.T) {
	engine := NewEngine()
	field := dominantLaneOne()
	want, err := engine.ScoreRace(field)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.ScoreRace(field)
			if assert.NoError(t, err) {
				assert.Equal(t, want.RankedLanes, got.RankedLanes)
			}
		}()
	}
	wg.Wait()
}

func TestAuxiliaryFactorReadsNationalTopTwo(t *testing.T) {
	field := equalField()
	for i := range field {
		field[i].Auxiliary = map[string]float64{models.AuxNationalTop2: 30}
	}
	field[3].Auxiliary[models.AuxNationalTop2] = 60
	field[5].Auxiliary = nil

	other, err := NewOtherFactor(OtherNationalTop, 0.5)
	require.NoError(t, err)

	scores, err := NewEngine(WithOtherFactor(other)).Explain(field)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, scores[0].Factors.Other, 1e-9)
	assert.InDelta(t, 0.6, scores[3].Factors.Other, 1e-9)
	assert.InDelta(t, 0.5, scores[5].Factors.Other, 1e-9, "missing signal falls back")

	p, err := NewEngine(WithOtherFactor(other)).ScoreRace(field)
	require.NoError(t, err)
	assert.Equal(t, 4, p.RankedLanes[0])
}

func TestNewOtherFactor(t *testing.T) {
	f, err := NewOtherFactor("", 0.4)
	require.NoError(t, err)
	assert.Equal(t, NeutralFactor{Value: 0.4}, f)

	_, err = NewOtherFactor("weather", 0.5)
	assert.Error(t, err)
}

// Package scoring ranks a race's six entries with a fixed-weight linear score.
// The engine is stateless and safe for concurrent use.
package scoring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/venue"
)

// Scoring error reasons
const (
	ReasonRosterSize    = "roster_size"
	ReasonDuplicateLane = "duplicate_lane"
	ReasonInvalidEntry  = "invalid_entry"
)

// ErrInvalidRoster is wrapped by every ScoringError.
var ErrInvalidRoster = errors.New("invalid race roster")

// ScoringError reports a roster the engine refuses to score.
type ScoringError struct {
	Reason string
	Lane   int // 0 when the error is not about one lane
	Err    error
}

func (e *ScoringError) Error() string {
	if e.Lane > 0 {
		return fmt.Sprintf("scoring: %s (lane %d): %v", e.Reason, e.Lane, e.Err)
	}
	return fmt.Sprintf("scoring: %s: %v", e.Reason, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// LaneScore is one entry's normalized factors and composite score.
type LaneScore struct {
	Lane      int     `json:"lane"`
	RacerName string  `json:"racer_name"`
	Factors   Factors `json:"factors"`
	Composite float64 `json:"composite"`
}

// Engine computes predictions from race programs.
type Engine struct {
	weights   Weights
	other     OtherFactor
	steepness float64
	validate  *validator.Validate
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the factor weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithOtherFactor plugs in the residual factor.
func WithOtherFactor(f OtherFactor) Option {
	return func(e *Engine) {
		if f != nil {
			e.other = f
		}
	}
}

// WithSteepness sets the confidence curve steepness.
func WithSteepness(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.steepness = k
		}
	}
}

// NewEngine creates an engine with the default weights and a neutral residual factor.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights:   DefaultWeights(),
		other:     NeutralFactor{Value: 0.5},
		steepness: DefaultSteepness,
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreRace ranks the six entries and derives the confidence of the top pick.
// The returned prediction carries no race key or timestamp; callers set those.
func (e *Engine) ScoreRace(entries []models.Entry) (*models.Prediction, error) {
	scores, err := e.Explain(entries)
	if err != nil {
		return nil, err
	}

	ranked := make([]LaneScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].Lane < ranked[j].Lane
	})

	p := &models.Prediction{
		RankedLanes: make([]int, len(ranked)),
		Scores:      make(map[int]float64, len(ranked)),
	}
	for i, ls := range ranked {
		p.RankedLanes[i] = ls.Lane
		p.Scores[ls.Lane] = ls.Composite
	}
	p.Confidence = Confidence(ranked[0].Composite-ranked[1].Composite, e.steepness)

	return p, nil
}

// Explain returns each entry's normalized factors and composite score, in lane order.
func (e *Engine) Explain(entries []models.Entry) ([]LaneScore, error) {
	if err := e.validateRoster(entries); err != nil {
		return nil, err
	}

	motor := rangeOf(entries, func(en models.Entry) float64 { return *en.MotorIndex })
	boat := rangeOf(entries, func(en models.Entry) float64 { return *en.BoatIndex })
	start := rangeOf(entries, func(en models.Entry) float64 { return *en.AverageStartTiming })

	scores := make([]LaneScore, 0, len(entries))
	for _, en := range entries {
		f := Factors{
			NationalWinRate: percent(*en.NationalWinRate),
			LocalWinRate:    percent(*en.LocalWinRate),
			Motor:           motor.normalize(*en.MotorIndex),
			Boat:            boat.normalize(*en.BoatIndex),
			// lower start timing is better
			StartTiming: 1 - start.normalize(*en.AverageStartTiming),
			Other:       clamp01(e.other.Score(en, entries)),
		}
		scores = append(scores, LaneScore{
			Lane:      en.Lane,
			RacerName: en.RacerName,
			Factors:   f,
			Composite: f.Composite(e.weights),
		})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].Lane < scores[j].Lane })
	return scores, nil
}

func (e *Engine) validateRoster(entries []models.Entry) error {
	if len(entries) != venue.LanesPerRace {
		return &ScoringError{
			Reason: ReasonRosterSize,
			Err:    fmt.Errorf("%w: want %d entries, got %d", ErrInvalidRoster, venue.LanesPerRace, len(entries)),
		}
	}

	seen := make(map[int]bool, len(entries))
	for _, en := range entries {
		if err := e.validate.Struct(en); err != nil {
			return &ScoringError{
				Reason: ReasonInvalidEntry,
				Lane:   en.Lane,
				Err:    fmt.Errorf("%w: %s", ErrInvalidRoster, describe(err)),
			}
		}
		if seen[en.Lane] {
			return &ScoringError{
				Reason: ReasonDuplicateLane,
				Lane:   en.Lane,
				Err:    fmt.Errorf("%w: lane %d appears twice", ErrInvalidRoster, en.Lane),
			}
		}
		seen[en.Lane] = true
	}
	return nil
}

// describe turns validator errors into "Field: tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += ", "
		}
		if fe.Tag() == "required" {
			msg += fe.Field() + " missing"
		} else {
			msg += fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return msg
}

package models

import (
	"fmt"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/venue"
)

// Result is the actual outcome of a race. Order lists lanes by finishing
// position; at least the top three must be present.
type Result struct {
	Key   RaceKey `json:"race"`
	Order []int   `json:"order"`
}

// Winner returns the winning lane.
func (r *Result) Winner() int {
	if len(r.Order) == 0 {
		return 0
	}
	return r.Order[0]
}

// ValidateOrder checks that order holds 3..6 distinct lanes within 1..6.
func ValidateOrder(order []int) error {
	if len(order) < 3 || len(order) > venue.LanesPerRace {
		return fmt.Errorf("%w: need 3 to %d lanes, got %d", ErrInvalidOrder, venue.LanesPerRace, len(order))
	}
	seen := make(map[int]bool, len(order))
	for _, lane := range order {
		if !venue.IsValidLane(lane) {
			return fmt.Errorf("%w: lane %d out of range", ErrInvalidOrder, lane)
		}
		if seen[lane] {
			return fmt.Errorf("%w: lane %d repeated", ErrInvalidOrder, lane)
		}
		seen[lane] = true
	}
	return nil
}

// AccuracyRecord combines a prediction with its result. It is write-once.
type AccuracyRecord struct {
	ID             int64     `db:"id" json:"id"`
	PredictionID   int64     `db:"-" json:"prediction_id"`
	Key            RaceKey   `db:"-" json:"race"`
	PredictedLanes []int     `db:"-" json:"predicted_lanes"`
	ActualLanes    []int     `db:"actual_lanes" json:"actual_lanes"`
	Confidence     float64   `db:"-" json:"confidence"`
	WinHit         bool      `db:"is_win_hit" json:"is_win_hit"`
	PlaceHit       bool      `db:"is_place_hit" json:"is_place_hit"`
	TrifectaHit    bool      `db:"is_trifecta_hit" json:"is_trifecta_hit"`
	RecordedAt     time.Time `db:"timestamp" json:"recorded_at"`
}

// HitStatus returns "hit" or "miss" based on the win flag.
func (a *AccuracyRecord) HitStatus() string {
	if a.WinHit {
		return "hit"
	}
	return "miss"
}

// Summary aggregates hit rates over a set of accuracy records.
type Summary struct {
	Since        time.Time `json:"since"`
	Until        time.Time `json:"until"`
	N            int       `json:"n"`
	WinHits      int       `json:"win_hits"`
	PlaceHits    int       `json:"place_hits"`
	TrifectaHits int       `json:"trifecta_hits"`
	WinRate      float64   `json:"win_rate"`
	PlaceRate    float64   `json:"place_rate"`
	TrifectaRate float64   `json:"trifecta_rate"`
}

// Add folds one record into the summary and refreshes the rates.
func (s *Summary) Add(rec *AccuracyRecord) {
	s.N++
	if rec.WinHit {
		s.WinHits++
	}
	if rec.PlaceHit {
		s.PlaceHits++
	}
	if rec.TrifectaHit {
		s.TrifectaHits++
	}
	s.WinRate = rate(s.WinHits, s.N)
	s.PlaceRate = rate(s.PlaceHits, s.N)
	s.TrifectaRate = rate(s.TrifectaHits, s.N)
}

func rate(hits, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(hits) / float64(n)
}

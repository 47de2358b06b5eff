package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PlaceDepth is how many finishers count towards a place hit.
const PlaceDepth = 2

// Prediction is the scoring engine's output for one race. It is immutable once created.
type Prediction struct {
	ID          int64           `db:"id" json:"id"`
	Key         RaceKey         `db:"-" json:"race"`
	RankedLanes []int           `db:"predicted_lanes" json:"ranked_lanes" validate:"len=6,unique,dive,min=1,max=6"`
	Confidence  float64         `db:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	Scores      map[int]float64 `db:"-" json:"scores,omitempty"`
	CreatedAt   time.Time       `db:"timestamp" json:"created_at"`
}

var predictionValidator = validator.New()

// Validate checks that RankedLanes is a permutation of 1..6 and that
// Confidence lies in [0,1].
func (p *Prediction) Validate() error {
	if err := predictionValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}
	return nil
}

// RecommendedWin returns the top-ranked lane.
func (p *Prediction) RecommendedWin() int {
	if len(p.RankedLanes) == 0 {
		return 0
	}
	return p.RankedLanes[0]
}

// RecommendedPlace returns the lanes predicted to finish in the paying places.
func (p *Prediction) RecommendedPlace() []int {
	return head(p.RankedLanes, PlaceDepth)
}

// Exacta returns the predicted first-second combination, e.g. "1-3".
func (p *Prediction) Exacta() string {
	return joinLanes(head(p.RankedLanes, 2))
}

// Trifecta returns the predicted first-second-third combination, e.g. "1-3-2".
func (p *Prediction) Trifecta() string {
	return joinLanes(head(p.RankedLanes, 3))
}

// MeetsThreshold checks if the confidence meets the given threshold
func (p *Prediction) MeetsThreshold(threshold float64) bool {
	return p.Confidence >= threshold
}

func head(lanes []int, n int) []int {
	if len(lanes) < n {
		n = len(lanes)
	}
	out := make([]int, n)
	copy(out, lanes[:n])
	return out
}

func joinLanes(lanes []int) string {
	parts := make([]string, len(lanes))
	for i, l := range lanes {
		parts[i] = fmt.Sprintf("%d", l)
	}
	return strings.Join(parts, "-")
}

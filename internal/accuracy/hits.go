package accuracy

import "github.com/yourusername/kyotei-predictor/internal/models"

// Hits holds the three hit flags of a reconciled race.
type Hits struct {
	Win      bool
	Place    bool
	Trifecta bool
}

// Evaluate compares predicted lanes against the actual finishing order.
//
// A win hit means the top pick won. A place hit means the top pick finished
// within the first models.PlaceDepth places. A trifecta hit means the first
// three predicted lanes match the first three finishers in exact order.
func Evaluate(predicted, actual []int) Hits {
	var h Hits
	if len(predicted) == 0 || len(actual) == 0 {
		return h
	}

	top := predicted[0]
	h.Win = actual[0] == top
	for i := 0; i < models.PlaceDepth && i < len(actual); i++ {
		if actual[i] == top {
			h.Place = true
			break
		}
	}

	if len(predicted) >= 3 && len(actual) >= 3 {
		h.Trifecta = predicted[0] == actual[0] && predicted[1] == actual[1] && predicted[2] == actual[2]
	}
	return h
}

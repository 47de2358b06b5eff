package models

// Auxiliary signal keys carried in Entry.Auxiliary.
const (
	AuxNationalTop2 = "national_top_2_percent"
	AuxLocalTop2    = "local_top_2_percent"
	AuxFlyingCount  = "flying_count"
	AuxWeight       = "weight"
)

// Entry is one competitor's participation in one race.
// Required stats are pointers so a missing value is distinguishable from zero.
type Entry struct {
	RacerID            int                `json:"racer_id"`
	RacerName          string             `json:"racer_name"`
	RacerClass         string             `json:"racer_class,omitempty"`
	Lane               int                `json:"lane" validate:"min=1,max=6"`
	NationalWinRate    *float64           `json:"national_win_rate" validate:"required,gte=0,lte=100"`
	LocalWinRate       *float64           `json:"local_win_rate" validate:"required,gte=0,lte=100"`
	MotorIndex         *float64           `json:"motor_index" validate:"required,gte=0"`
	BoatIndex          *float64           `json:"boat_index" validate:"required,gte=0"`
	AverageStartTiming *float64           `json:"average_start_timing" validate:"required,gte=0"`
	Auxiliary          map[string]float64 `json:"auxiliary,omitempty"`
}

// Float returns a pointer to v; convenient for building entries.
func Float(v float64) *float64 {
	return &v
}

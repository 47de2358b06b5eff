package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/venue"
)

// DateLayout is the canonical date_str format stored with predictions and results.
const DateLayout = "2006-01-02"

// RaceKey identifies a single race: venue, race number and calendar date.
type RaceKey struct {
	VenueID    int    `db:"venue_id" json:"venue_id" validate:"required,min=1,max=24"`
	RaceNumber int    `db:"race_number" json:"race_number" validate:"required,min=1,max=12"`
	Date       string `db:"date_str" json:"date" validate:"required,datetime=2006-01-02"`
}

// NewRaceKey builds a key for the given venue, race number and date.
func NewRaceKey(venueID, raceNumber int, date time.Time) RaceKey {
	return RaceKey{
		VenueID:    venueID,
		RaceNumber: raceNumber,
		Date:       date.Format(DateLayout),
	}
}

// Validate checks the venue, race number and date format.
func (k RaceKey) Validate() error {
	if !venue.IsValid(k.VenueID) {
		return fmt.Errorf("%w: unknown venue %d", ErrInvalidKey, k.VenueID)
	}
	if !venue.IsValidRaceNumber(k.RaceNumber) {
		return fmt.Errorf("%w: race number %d out of range", ErrInvalidKey, k.RaceNumber)
	}
	if _, err := time.Parse(DateLayout, k.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrInvalidKey, k.Date)
	}
	return nil
}

// String returns the compact form YYYYMMDD_VV_RR, e.g. 20250825_04_07.
func (k RaceKey) String() string {
	return fmt.Sprintf("%s_%02d_%02d", strings.ReplaceAll(k.Date, "-", ""), k.VenueID, k.RaceNumber)
}

// VenueName returns the display name of the key's venue.
func (k RaceKey) VenueName() string {
	return venue.Name(k.VenueID)
}

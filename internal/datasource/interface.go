package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/kyotei-predictor/internal/models"
)

// RaceSource defines the upstream feed of race programs and results
type RaceSource interface {
	// FetchDayPrograms retrieves every race program published for the given day
	FetchDayPrograms(ctx context.Context, day time.Time) ([]RaceProgram, error)

	// FetchDayResults retrieves every finished race result published for the given day
	FetchDayResults(ctx context.Context, day time.Time) ([]RaceResult, error)

	// Name returns the name of the data source
	Name() string
}

// RaceProgram is one race card: venue, race number and the six entries.
type RaceProgram struct {
	VenueID    int            `json:"venue_id"`
	RaceNumber int            `json:"race_number"`
	ClosedAt   string         `json:"closed_at,omitempty"`
	Title      string         `json:"title,omitempty"`
	Entries    []models.Entry `json:"entries"`
}

// RaceResult is the finishing order of one race, winner first.
type RaceResult struct {
	VenueID    int   `json:"venue_id"`
	RaceNumber int   `json:"race_number"`
	Order      []int `json:"order"`
}

// Failure reasons carried by FetchError
const (
	ReasonNetwork     = "network"
	ReasonTimeout     = "timeout"
	ReasonStatus      = "status"
	ReasonMalformed   = "malformed"
	ReasonNotFound    = "not_found"
	ReasonCircuitOpen = "circuit_open"
	ReasonInvalid     = "invalid_request"
)

// ErrRaceNotFound is wrapped by FetchError when the feed has no such race.
var ErrRaceNotFound = errors.New("race not found in feed")

// FetchError represents a failed attempt to obtain upstream data
type FetchError struct {
	Source string // Data source name
	Reason string // One of the Reason* constants
	Key    string // Race key or feed date the fetch was for
	Err    error  // Underlying error
}

func (e *FetchError) Error() string {
	msg := e.Source + ": " + e.Reason
	if e.Key != "" {
		msg += " [" + e.Key + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error
func NewFetchError(source, reason, key string, err error) *FetchError {
	return &FetchError{Source: source, Reason: reason, Key: key, Err: err}
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// IsReason reports whether err is a FetchError with the given reason.
func IsReason(err error, reason string) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Reason == reason
}

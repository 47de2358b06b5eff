// Package logger provides prediction-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// PredictionLogger provides dedicated logging for scoring runs.
type PredictionLogger struct {
	*logrus.Entry
}

// NewPredictionLogger creates a new prediction logger.
func NewPredictionLogger(base logrus.FieldLogger) *PredictionLogger {
	return &PredictionLogger{
		Entry: OrDiscard(base).WithField("component", "prediction"),
	}
}

// LogRaceScored logs a completed scoring run.
func (pl *PredictionLogger) LogRaceScored(runID, raceKey string, rankedLanes []int, confidence, durationMs float64) {
	pl.WithFields(logrus.Fields{
		"run_id":              runID,
		"race_key":            raceKey,
		"ranked_lanes":        rankedLanes,
		"recommended_win":     first(rankedLanes),
		"confidence":          confidence,
		"scoring_duration_ms": durationMs,
	}).Info("Race scored")
}

// LogScoringFailed logs a roster the engine rejected.
func (pl *PredictionLogger) LogScoringFailed(runID, raceKey string, err error) {
	pl.WithFields(logrus.Fields{
		"run_id":   runID,
		"race_key": raceKey,
		"error":    err.Error(),
	}).Error("Scoring failed, no prediction available")
}

// LogFetchFailed logs a race whose program could not be fetched.
func (pl *PredictionLogger) LogFetchFailed(runID, raceKey string, err error) {
	pl.WithFields(logrus.Fields{
		"run_id":   runID,
		"race_key": raceKey,
		"error":    err.Error(),
	}).Warn("Program fetch failed, no prediction available")
}

// LogRunCompleted logs the totals of a batch prediction run.
func (pl *PredictionLogger) LogRunCompleted(runID, date string, attempted, recorded, skipped, failed int) {
	pl.WithFields(logrus.Fields{
		"run_id":    runID,
		"date":      date,
		"attempted": attempted,
		"recorded":  recorded,
		"skipped":   skipped,
		"failed":    failed,
	}).Info("Prediction run completed")
}

func first(lanes []int) int {
	if len(lanes) == 0 {
		return 0
	}
	return lanes[0]
}

// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for store writes.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger from any logrus field logger.
func NewAuditLogger(base logrus.FieldLogger) *AuditLogger {
	return &AuditLogger{
		Entry: OrDiscard(base).WithField("component", "audit"),
	}
}

// LogPredictionStored logs a persisted prediction row.
func (al *AuditLogger) LogPredictionStored(predictionID int64, raceKey string, rankedLanes []int, confidence float64, timestamp time.Time) {
	al.WithFields(logrus.Fields{
		"prediction_id": predictionID,
		"race_key":      raceKey,
		"ranked_lanes":  rankedLanes,
		"confidence":    confidence,
		"timestamp":     timestamp.Unix(),
	}).Info("Prediction recorded")
}

// LogResultReconciled logs a persisted result row and its hit flags.
func (al *AuditLogger) LogResultReconciled(resultID int64, raceKey string, actualLanes []int, winHit, placeHit, trifectaHit bool) {
	al.WithFields(logrus.Fields{
		"result_id":       resultID,
		"race_key":        raceKey,
		"actual_lanes":    actualLanes,
		"is_win_hit":      winHit,
		"is_place_hit":    placeHit,
		"is_trifecta_hit": trifectaHit,
	}).Info("Result reconciled")
}

// LogWriteRejected logs a write refused by a store invariant.
func (al *AuditLogger) LogWriteRejected(table, raceKey string, err error) {
	al.WithFields(logrus.Fields{
		"table":    table,
		"race_key": raceKey,
		"error":    err.Error(),
	}).Warn("Store write rejected")
}

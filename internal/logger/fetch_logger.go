// Package logger provides data-source logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// FetchLogger provides dedicated logging for upstream data fetches.
type FetchLogger struct {
	*logrus.Entry
}

// NewFetchLogger creates a new fetch logger from any logrus field logger.
func NewFetchLogger(base logrus.FieldLogger) *FetchLogger {
	return &FetchLogger{
		Entry: OrDiscard(base).WithField("component", "fetcher"),
	}
}

// LogProgramFetch logs a program lookup.
func (fl *FetchLogger) LogProgramFetch(raceKey string, cacheHit bool, latencyMs float64) {
	fl.WithFields(logrus.Fields{
		"race_key":   raceKey,
		"cache_hit":  cacheHit,
		"latency_ms": latencyMs,
	}).Debug("Program fetched")
}

// LogUpstreamRequest logs one outbound call.
func (fl *FetchLogger) LogUpstreamRequest(url string, status int, latencyMs float64) {
	fl.WithFields(logrus.Fields{
		"url":        url,
		"status":     status,
		"latency_ms": latencyMs,
	}).Info("Upstream request completed")
}

// LogFetchError logs a failed fetch with its reason.
func (fl *FetchLogger) LogFetchError(raceKey, reason string, err error) {
	fl.WithFields(logrus.Fields{
		"race_key": raceKey,
		"reason":   reason,
		"error":    err,
	}).Warn("Program fetch failed")
}

// LogStaleServed logs a fallback to an expired cache entry.
func (fl *FetchLogger) LogStaleServed(raceKey string, ageSeconds float64) {
	fl.WithFields(logrus.Fields{
		"race_key":    raceKey,
		"age_seconds": ageSeconds,
	}).Warn("Serving stale program from cache")
}

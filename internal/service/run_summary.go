package service

import (
	"sync"
	"time"
)

// RunSummary tracks the outcome of one batch run. Counters are safe for
// concurrent workers.
type RunSummary struct {
	mu        sync.Mutex
	RunID     string        `json:"run_id"`
	Date      string        `json:"date"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Recorded  int           `json:"recorded"`
	// Existing counts races that already had a stored prediction or result.
	Existing int `json:"existing"`
	// Skipped counts predictions below the configured minimum confidence.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	// Unmatched counts results without a stored prediction.
	Unmatched int `json:"unmatched"`
	WinHits   int `json:"win_hits"`
}

func newRunSummary(runID, date string) *RunSummary {
	return &RunSummary{RunID: runID, Date: date, StartTime: time.Now()}
}

func (s *RunSummary) add(counter *int) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

// RecordAttempt increments the attempted count
func (s *RunSummary) RecordAttempt() { s.add(&s.Attempted) }

// RecordStored increments the recorded count
func (s *RunSummary) RecordStored() { s.add(&s.Recorded) }

// RecordExisting increments the existing count
func (s *RunSummary) RecordExisting() { s.add(&s.Existing) }

// RecordSkipped increments the skipped count
func (s *RunSummary) RecordSkipped() { s.add(&s.Skipped) }

// RecordFailure increments the failed count
func (s *RunSummary) RecordFailure() { s.add(&s.Failed) }

// RecordUnmatched increments the unmatched count
func (s *RunSummary) RecordUnmatched() { s.add(&s.Unmatched) }

// RecordWinHit increments the win hit count
func (s *RunSummary) RecordWinHit() { s.add(&s.WinHits) }

func (s *RunSummary) finish() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

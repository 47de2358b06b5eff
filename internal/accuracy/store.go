// Package accuracy records predictions and results and derives hit rates.
// The store is append-only: nothing it writes is ever updated or deleted.
package accuracy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/kyotei-predictor/internal/logger"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/repository"
)

// Store persists predictions and reconciles them against results.
// Writes for one race key are serialized; different keys proceed in parallel.
type Store struct {
	predictions repository.PredictionRepository
	results     repository.ResultRepository
	locks       *keyLocks
	now         func() time.Time
	audit       *logger.AuditLogger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over the given repositories.
func NewStore(repos *repository.Repositories, log logrus.FieldLogger, opts ...Option) *Store {
	s := &Store{
		predictions: repos.Prediction,
		results:     repos.Result,
		locks:       newKeyLocks(),
		now:         time.Now,
		audit:       logger.NewAuditLogger(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPrediction persists p and returns its row id. The store sets the
// timestamp. A second prediction for the same race fails with
// models.ErrDuplicateKey and the first row is kept.
func (s *Store) RecordPrediction(ctx context.Context, p *models.Prediction) (int64, error) {
	if p == nil {
		return 0, errors.New("prediction is required")
	}
	if err := p.Key.Validate(); err != nil {
		return 0, err
	}
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("prediction for %s: %w", p.Key, err)
	}

	unlock := s.locks.lock(p.Key.String())
	defer unlock()

	row := *p
	row.RankedLanes = append([]int(nil), p.RankedLanes...)
	row.CreatedAt = s.now().UTC()

	id, err := s.predictions.Insert(ctx, &row)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			s.audit.LogWriteRejected("predictions", p.Key.String(), err)
		}
		return 0, err
	}

	p.ID = id
	p.CreatedAt = row.CreatedAt
	s.audit.LogPredictionStored(id, p.Key.String(), row.RankedLanes, row.Confidence, row.CreatedAt)
	metrics.RecordPredictionRecorded(row.Confidence)
	return id, nil
}

// RecordResult reconciles the actual finishing order of a race with its
// prediction. It fails with models.ErrNotFound when no prediction exists and
// models.ErrDuplicateKey when the race was already reconciled.
func (s *Store) RecordResult(ctx context.Context, venueID, raceNumber int, date string, actualOrder []int) (*models.AccuracyRecord, error) {
	key := models.RaceKey{VenueID: venueID, RaceNumber: raceNumber, Date: date}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateOrder(actualOrder); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(key.String())
	defer unlock()

	p, err := s.predictions.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.LogWriteRejected("results", key.String(), err)
		}
		return nil, err
	}

	hits := Evaluate(p.RankedLanes, actualOrder)
	rec := &models.AccuracyRecord{
		PredictionID:   p.ID,
		Key:            key,
		PredictedLanes: p.RankedLanes,
		ActualLanes:    append([]int(nil), actualOrder...),
		Confidence:     p.Confidence,
		WinHit:         hits.Win,
		PlaceHit:       hits.Place,
		TrifectaHit:    hits.Trifecta,
		RecordedAt:     s.now().UTC(),
	}

	id, err := s.results.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			s.audit.LogWriteRejected("results", key.String(), err)
		}
		return nil, err
	}
	rec.ID = id

	s.audit.LogResultReconciled(id, key.String(), rec.ActualLanes, rec.WinHit, rec.PlaceHit, rec.TrifectaHit)
	metrics.RecordResultReconciled(rec.WinHit)
	return rec, nil
}

// GetSummary aggregates hit rates over results recorded within [since, until].
// An empty window yields N == 0 and zero rates.
func (s *Store) GetSummary(ctx context.Context, since, until time.Time) (*models.Summary, error) {
	records, err := s.Records(ctx, since, until)
	if err != nil {
		return nil, err
	}

	summary := &models.Summary{Since: since, Until: until}
	for _, rec := range records {
		summary.Add(rec)
	}
	return summary, nil
}

// Records returns the accuracy records reconciled within [since, until], oldest first.
func (s *Store) Records(ctx context.Context, since, until time.Time) ([]*models.AccuracyRecord, error) {
	if until.Before(since) {
		return nil, fmt.Errorf("summary window ends (%s) before it starts (%s)", until, since)
	}
	records, err := s.results.GetByTimeRange(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to load accuracy records: %w", err)
	}
	return records, nil
}

// GetPrediction returns the stored prediction for a race.
func (s *Store) GetPrediction(ctx context.Context, key models.RaceKey) (*models.Prediction, error) {
	return s.predictions.GetByKey(ctx, key)
}

// GetRecord returns the reconciled record for a race.
func (s *Store) GetRecord(ctx context.Context, key models.RaceKey) (*models.AccuracyRecord, error) {
	return s.results.GetByKey(ctx, key)
}

// RaceOutcome pairs a stored prediction with its accuracy record once reconciled.
type RaceOutcome struct {
	Prediction *models.Prediction     `json:"prediction"`
	Record     *models.AccuracyRecord `json:"record,omitempty"`
}

// Status is "pending" until the race is reconciled, then "hit" or "miss" on the win pick.
func (o RaceOutcome) Status() string {
	if o.Record == nil {
		return "pending"
	}
	return o.Record.HitStatus()
}

// ByDate returns every prediction for date with its record, ordered by venue and race.
func (s *Store) ByDate(ctx context.Context, date string) ([]RaceOutcome, error) {
	predictions, err := s.predictions.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions for %s: %w", date, err)
	}

	outcomes := make([]RaceOutcome, 0, len(predictions))
	for _, p := range predictions {
		o := RaceOutcome{Prediction: p}
		rec, err := s.results.GetByKey(ctx, p.Key)
		switch {
		case err == nil:
			o.Record = rec
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Pending returns predictions still awaiting a result. An empty date means every date.
func (s *Store) Pending(ctx context.Context, date string) ([]*models.Prediction, error) {
	pending, err := s.predictions.GetPending(ctx, date)
	if err != nil {
		return nil, err
	}
	if date == "" {
		metrics.UpdatePendingPredictions(len(pending))
	}
	return pending, nil
}

// Counts returns the number of stored predictions and reconciled results.
func (s *Store) Counts(ctx context.Context) (predictions, results int, err error) {
	if predictions, err = s.predictions.Count(ctx); err != nil {
		return 0, 0, err
	}
	if results, err = s.results.Count(ctx); err != nil {
		return 0, 0, err
	}
	return predictions, results, nil
}

// Package service runs the fetch, score and record pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/logger"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/venue"
)

// ErrNoPrediction is returned when a race cannot be scored. No default
// prediction is ever substituted.
var ErrNoPrediction = errors.New("no prediction available")

// PredictionService wires the fetcher, scoring engine and accuracy store
type PredictionService struct {
	fetcher       ProgramFetcher
	scorer        Scorer
	store         AccuracyStore
	logger        *logger.PredictionLogger
	workers       int
	minConfidence float64
}

// Option configures a PredictionService
type Option func(*PredictionService)

// WithWorkers sets how many races PredictDate scores concurrently.
func WithWorkers(n int) Option {
	return func(s *PredictionService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMinConfidence sets the confidence below which PredictDate does not record.
func WithMinConfidence(c float64) Option {
	return func(s *PredictionService) { s.minConfidence = c }
}

// NewPredictionService creates a new prediction service
func NewPredictionService(fetcher ProgramFetcher, scorer Scorer, store AccuracyStore, log logrus.FieldLogger, opts ...Option) *PredictionService {
	s := &PredictionService{
		fetcher: fetcher,
		scorer:  scorer,
		store:   store,
		logger:  logger.NewPredictionLogger(log),
		workers: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PredictRace fetches, scores and records one race. When the race already has
// a stored prediction the stored one is returned unchanged.
func (s *PredictionService) PredictRace(ctx context.Context, venueID, raceNumber int, date string) (*models.Prediction, error) {
	runID := uuid.NewString()
	p, _, err := s.predict(ctx, runID, venueID, raceNumber, date, true)
	return p, err
}

// ScoreRace fetches and scores one race without recording it.
func (s *PredictionService) ScoreRace(ctx context.Context, venueID, raceNumber int, date string) (*models.Prediction, error) {
	p, _, err := s.predict(ctx, uuid.NewString(), venueID, raceNumber, date, false)
	return p, err
}

type outcome int

const (
	outcomeRecorded outcome = iota
	outcomeExisting
	outcomeSkipped
	outcomeScoredOnly
)

func (s *PredictionService) predict(ctx context.Context, runID string, venueID, raceNumber int, date string, record bool) (*models.Prediction, outcome, error) {
	key, err := s.raceKey(venueID, raceNumber, date)
	if err != nil {
		return nil, 0, err
	}

	entries, err := s.fetcher.FetchProgram(ctx, venueID, raceNumber, key.Date)
	if err != nil {
		s.logger.LogFetchFailed(runID, key.String(), err)
		return nil, 0, fmt.Errorf("%w: %w", ErrNoPrediction, err)
	}

	return s.scoreAndRecord(ctx, runID, key, entries, record)
}

func (s *PredictionService) scoreAndRecord(ctx context.Context, runID string, key models.RaceKey, entries []models.Entry, record bool) (*models.Prediction, outcome, error) {
	start := time.Now()
	p, err := s.scorer.ScoreRace(entries)
	if err != nil {
		metrics.RecordScoringFailure()
		s.logger.LogScoringFailed(runID, key.String(), err)
		return nil, 0, fmt.Errorf("%w: %w", ErrNoPrediction, err)
	}
	p.Key = key
	s.logger.LogRaceScored(runID, key.String(), p.RankedLanes, p.Confidence, float64(time.Since(start).Microseconds())/1000)

	if !record {
		return p, outcomeScoredOnly, nil
	}
	if !p.MeetsThreshold(s.minConfidence) {
		return p, outcomeSkipped, nil
	}

	if _, err := s.store.RecordPrediction(ctx, p); err != nil {
		if !errors.Is(err, models.ErrDuplicateKey) {
			return nil, 0, fmt.Errorf("failed to record prediction for %s: %w", key, err)
		}
		stored, getErr := s.store.GetPrediction(ctx, key)
		if getErr != nil {
			return nil, 0, fmt.Errorf("failed to load stored prediction for %s: %w", key, getErr)
		}
		return stored, outcomeExisting, nil
	}
	return p, outcomeRecorded, nil
}

// PredictDate scores and records every race published for date. Races are
// processed by a bounded worker pool; one race failing does not stop the others.
func (s *PredictionService) PredictDate(ctx context.Context, date string) (*RunSummary, error) {
	day, err := datasource.ResolveDate(date, s.fetcher.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidKey, err)
	}
	dateStr := day.Format(models.DateLayout)
	summary := newRunSummary(uuid.NewString(), dateStr)

	programs, err := s.fetcher.FetchDay(ctx, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch programs for %s: %w", dateStr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, program := range programs {
		program := program
		key := models.NewRaceKey(program.VenueID, program.RaceNumber, day)
		if key.Validate() != nil {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			summary.RecordAttempt()

			// entries come from the day document
			_, out, err := s.scoreAndRecord(gctx, summary.RunID, key, program.Entries, true)
			switch {
			case err != nil:
				summary.RecordFailure()
			case out == outcomeRecorded:
				summary.RecordStored()
			case out == outcomeExisting:
				summary.RecordExisting()
			case out == outcomeSkipped:
				summary.RecordSkipped()
			}
			return nil
		})
	}

	err = g.Wait()
	summary.finish()
	metrics.RecordRunDuration("predict", summary.Duration.Seconds())
	s.logger.LogRunCompleted(summary.RunID, dateStr, summary.Attempted, summary.Recorded, summary.Skipped+summary.Existing, summary.Failed)
	if err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

// ReconcileDate fetches the results of date and records them against every
// pending prediction. Results without a prediction are counted and ignored.
func (s *PredictionService) ReconcileDate(ctx context.Context, date string) (*RunSummary, error) {
	day, err := datasource.ResolveDate(date, s.fetcher.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidKey, err)
	}
	dateStr := day.Format(models.DateLayout)
	summary := newRunSummary(uuid.NewString(), dateStr)
	log := s.logger.WithFields(logrus.Fields{"run_id": summary.RunID, "date": dateStr})

	pending, err := s.store.Pending(ctx, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending predictions: %w", err)
	}
	if len(pending) == 0 {
		log.Info("No pending predictions to reconcile")
		summary.finish()
		return summary, nil
	}

	results, err := s.fetcher.FetchResults(ctx, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results for %s: %w", dateStr, err)
	}

	waiting := make(map[models.RaceKey]bool, len(pending))
	for _, p := range pending {
		waiting[p.Key] = true
	}

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !waiting[res.Key] {
			summary.RecordUnmatched()
			continue
		}
		summary.RecordAttempt()

		rec, err := s.store.RecordResult(ctx, res.Key.VenueID, res.Key.RaceNumber, res.Key.Date, res.Order)
		switch {
		case err == nil:
			summary.RecordStored()
			if rec.WinHit {
				summary.RecordWinHit()
			}
		case errors.Is(err, models.ErrDuplicateKey):
			summary.RecordExisting()
		default:
			summary.RecordFailure()
			log.WithError(err).WithField("race_key", res.Key.String()).Warn("Failed to record result")
		}
	}

	summary.finish()
	metrics.RecordRunDuration("reconcile", summary.Duration.Seconds())
	log.WithFields(logrus.Fields{
		"pending":    len(pending),
		"reconciled": summary.Recorded,
		"win_hits":   summary.WinHits,
		"unmatched":  summary.Unmatched,
		"failed":     summary.Failed,
	}).Info("Reconciliation completed")
	return summary, nil
}

func (s *PredictionService) raceKey(venueID, raceNumber int, date string) (models.RaceKey, error) {
	if !venue.IsValid(venueID) {
		return models.RaceKey{}, fmt.Errorf("%w: unknown venue %d", models.ErrInvalidKey, venueID)
	}
	day, err := datasource.ResolveDate(date, s.fetcher.Now())
	if err != nil {
		return models.RaceKey{}, fmt.Errorf("%w: %v", models.ErrInvalidKey, err)
	}
	key := models.NewRaceKey(venueID, raceNumber, day)
	return key, key.Validate()
}

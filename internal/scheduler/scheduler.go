// Package scheduler runs the prediction, reconciliation and report jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/kyotei-predictor/internal/logger"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/reporting"
	"github.com/yourusername/kyotei-predictor/internal/service"
)

// Job names
const (
	JobPredict   = "predict"
	JobReconcile = "reconcile"
	JobReport    = "report"
)

// Pipeline is the part of service.PredictionService the jobs drive
type Pipeline interface {
	PredictDate(ctx context.Context, date string) (*service.RunSummary, error)
	ReconcileDate(ctx context.Context, date string) (*service.RunSummary, error)
}

// ReportSource builds the reports logged by the nightly job
type ReportSource interface {
	AllTime(ctx context.Context) (*reporting.Report, error)
	Rolling(ctx context.Context, days int) (*reporting.Report, error)
}

// Scheduler manages the scheduled pipeline jobs
type Scheduler struct {
	cron            *cron.Cron
	pipeline        Pipeline
	reports         ReportSource
	location        *time.Location
	runTimeout      time.Duration
	logger          logrus.FieldLogger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          map[string]cron.EntryID
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler. Cron expressions are evaluated in loc.
func NewScheduler(pipeline Pipeline, reports ReportSource, loc *time.Location, runTimeout time.Duration, log logrus.FieldLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if runTimeout <= 0 {
		runTimeout = 2 * time.Hour
	}
	log = logger.OrDiscard(log).WithField("component", "scheduler")

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log}), cron.Recover(cronLogger{log})),
		),
		pipeline:        pipeline,
		reports:         reports,
		location:        loc,
		runTimeout:      runTimeout,
		logger:          log,
		jobIDs:          make(map[string]cron.EntryID),
		gracefulTimeout: 30 * time.Second,
	}
}

// SchedulePredictions schedules the morning run: predict today and reconcile yesterday.
func (s *Scheduler) SchedulePredictions(cronExpression string) error {
	return s.schedule(JobPredict, cronExpression, s.RunPredictions)
}

// ScheduleReconciliation schedules reconciliation of today's pending predictions.
func (s *Scheduler) ScheduleReconciliation(cronExpression string) error {
	return s.schedule(JobReconcile, cronExpression, s.RunReconciliation)
}

// ScheduleReport schedules the accuracy report.
func (s *Scheduler) ScheduleReport(cronExpression string) error {
	return s.schedule(JobReport, cronExpression, s.RunReport)
}

func (s *Scheduler) schedule(name, cronExpression string, run func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, exists := s.jobIDs[name]; exists {
		return fmt.Errorf("job %s is already scheduled", name)
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		if err := run(ctx); err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Scheduled job failed")
		}
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs[name] = entryID
	s.logger.WithFields(logrus.Fields{
		"job":  name,
		"cron": cronExpression,
	}).Info("Scheduled job")
	return nil
}

// RunPredictions predicts every race of today, then reconciles yesterday.
func (s *Scheduler) RunPredictions(ctx context.Context) error {
	today := s.today()

	summary, err := s.pipeline.PredictDate(ctx, today.Format(models.DateLayout))
	if err != nil {
		return fmt.Errorf("prediction run failed: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"run_id":   summary.RunID,
		"recorded": summary.Recorded,
		"failed":   summary.Failed,
	}).Info("Morning prediction run completed")

	yesterday := today.AddDate(0, 0, -1).Format(models.DateLayout)
	if _, err := s.pipeline.ReconcileDate(ctx, yesterday); err != nil {
		s.logger.WithError(err).WithField("date", yesterday).Warn("Reconciling previous day failed")
	}
	return nil
}

// RunReconciliation reconciles today's pending predictions.
func (s *Scheduler) RunReconciliation(ctx context.Context) error {
	_, err := s.pipeline.ReconcileDate(ctx, s.today().Format(models.DateLayout))
	return err
}

// RunReport logs the all-time and seven-day accuracy and refreshes the hit-rate gauges.
func (s *Scheduler) RunReport(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordRunDuration(JobReport, time.Since(start).Seconds()) }()

	all, err := s.reports.AllTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to build all-time report: %w", err)
	}
	week, err := s.reports.Rolling(ctx, 7)
	if err != nil {
		return fmt.Errorf("failed to build rolling report: %w", err)
	}

	metrics.UpdateHitRates(all.Summary.N, all.Summary.WinRate, all.Summary.PlaceRate, all.Summary.TrifectaRate)
	for _, r := range []*reporting.Report{all, week} {
		s.logger.WithFields(logrus.Fields{
			"window":       r.Label,
			"races":        r.Summary.N,
			"win_pct":      r.WinPct.String(),
			"place_pct":    r.PlacePct.String(),
			"trifecta_pct": r.TrifectaPct.String(),
		}).Info("Accuracy report")
	}
	return nil
}

func (s *Scheduler) today() time.Time {
	return time.Now().In(s.location)
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRuns returns the next run time of each scheduled job
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := make(map[string]time.Time, len(s.jobIDs))
	for name, id := range s.jobIDs {
		if entry := s.cron.Entry(id); entry.Valid() {
			next[name] = entry.Next
		}
	}
	return next
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/kyotei-predictor/internal/accuracy"
	"github.com/yourusername/kyotei-predictor/internal/config"
	"github.com/yourusername/kyotei-predictor/internal/database"
	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/reporting"
	"github.com/yourusername/kyotei-predictor/internal/repository"
	"github.com/yourusername/kyotei-predictor/internal/scoring"
	"github.com/yourusername/kyotei-predictor/internal/service"
)

// app holds the wired pipeline for one command invocation
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       database.DB
	store    *accuracy.Store
	fetcher  *datasource.Fetcher
	engine   *scoring.Engine
	service  *service.PredictionService
	reporter *reporting.Reporter
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	metrics.InitRegistry()

	db, err := database.Initialize(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	fetcher, err := datasource.NewFactory(cfg, log).NewFetcher(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := accuracy.NewStore(repos, log)
	other, err := scoring.NewOtherFactor(cfg.Scoring.OtherFactor, cfg.Scoring.NeutralOther)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine := scoring.NewEngine(
		scoring.WithSteepness(cfg.Scoring.ConfidenceSteepness),
		scoring.WithOtherFactor(other),
	)
	svc := service.NewPredictionService(fetcher, engine, store, log,
		service.WithWorkers(cfg.EffectiveWorkers()),
		service.WithMinConfidence(cfg.Pipeline.MinConfidence),
	)

	log.WithFields(logrus.Fields{
		"variant": cfg.Pipeline.Variant,
		"workers": cfg.EffectiveWorkers(),
		"driver":  db.Driver(),
	}).Debug("Pipeline ready")

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		fetcher:  fetcher,
		engine:   engine,
		service:  svc,
		reporter: reporting.NewReporter(store),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Error("Failed to close database")
	}
}

// withApp builds the pipeline, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/health"
	"github.com/yourusername/kyotei-predictor/internal/metrics"
	"github.com/yourusername/kyotei-predictor/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled jobs with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				return serve(cmd.Context(), a, runNow)
			})
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run the prediction job once at startup")
	return cmd
}

func serve(parent context.Context, a *app, runNow bool) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.log.WithFields(logrus.Fields{
		"environment": a.cfg.App.Environment,
		"variant":     a.cfg.Pipeline.Variant,
		"version":     Version,
	}).Info("Kyotei predictor service starting")

	// metrics share the health listener when the ports match
	healthPort := a.cfg.Health.Port
	sharedMetrics := a.cfg.Metrics.Enabled && strconv.Itoa(a.cfg.Metrics.Port) == healthPort

	var healthServer *health.Server
	if a.cfg.Health.Enabled {
		hc := health.Config{
			ServiceName: a.cfg.App.Name,
			Version:     Version,
			Port:        healthPort,
			Logger:      a.log,
			DB:          a.db,
			Fetcher:     a.fetcher,
		}
		if sharedMetrics {
			hc.MetricsPath = a.cfg.Metrics.Path
			hc.MetricsHandler = metrics.Handler()
		}
		healthServer = health.NewServer(hc)
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	if a.cfg.Metrics.Enabled && !sharedMetrics {
		metricsServer := newMetricsServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path)
		go func() {
			a.log.WithField("port", a.cfg.Metrics.Port).Info("Metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("Metrics server error")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				a.log.WithError(err).Warn("Metrics server shutdown failed")
			}
		}()
	}

	var sched *scheduler.Scheduler
	if a.cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(a.service, a.reporter, schedulerLocation(a), a.cfg.RunTimeout(), a.log)
		if err := sched.SchedulePredictions(a.cfg.Scheduler.PredictionCron); err != nil {
			return err
		}
		if err := sched.ScheduleReconciliation(a.cfg.Scheduler.ReconcileCron); err != nil {
			return err
		}
		if err := sched.ScheduleReport(a.cfg.Scheduler.ReportCron); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for job, next := range sched.NextRuns() {
			a.log.WithFields(logrus.Fields{"job": job, "next_run": next}).Info("Next scheduled run")
		}
	} else {
		a.log.Warn("Scheduler disabled; serving health endpoints only")
	}

	if runNow && sched != nil {
		go func() {
			runCtx, runCancel := context.WithTimeout(ctx, a.cfg.RunTimeout())
			defer runCancel()
			if err := sched.RunPredictions(runCtx); err != nil {
				a.log.WithError(err).Error("Startup prediction run failed")
			}
		}()
	}

	if healthServer != nil {
		healthServer.SetReady(true)
	}

	select {
	case sig := <-sigChan:
		a.log.WithField("signal", sig).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	if healthServer != nil {
		healthServer.SetReady(false)
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			a.log.WithError(err).Warn("Scheduler did not stop cleanly")
		}
	}
	cancel()

	a.log.Info("Kyotei predictor service stopped")
	return nil
}

func newMetricsServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// schedulerLocation loads the configured zone, falling back to the fixed JST
// offset when tzdata is unavailable.
func schedulerLocation(a *app) *time.Location {
	name := a.cfg.Scheduler.Timezone
	if name == "" {
		return datasource.JST
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		a.log.WithError(err).WithField("timezone", name).Warn("Unknown timezone, using JST")
		return datasource.JST
	}
	return loc
}

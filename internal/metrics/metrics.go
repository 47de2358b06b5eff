// Package metrics provides the centralized Prometheus metrics registry for the predictor.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kyotei"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of upstream feed requests by feed and outcome",
	}, []string{"feed", "outcome"})
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "program_cache_lookups_total",
		Help:      "Total number of program cache lookups by result",
	}, []string{"result"})
	PredictionsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_recorded_total",
		Help:      "Total number of predictions persisted",
	})
	ResultsReconciledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_reconciled_total",
		Help:      "Total number of results reconciled against a prediction, by win outcome",
	}, []string{"win_hit"})
	ScoringFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scoring_failures_total",
		Help:      "Total number of races that could not be scored",
	})
	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of upstream circuit breaker trips",
	})
)

// Gauge metrics
var (
	HitRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hit_rate",
		Help:      "All-time hit rate by bet type (win, place, trifecta)",
	}, []string{"bet_type"})
	ReconciledRaces = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconciled_races",
		Help:      "Number of races with both a prediction and a result",
	})
	PendingPredictions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_predictions",
		Help:      "Number of predictions still waiting for a result",
	})
	CachedPrograms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cached_programs",
		Help:      "Number of race programs held in the cache",
	})
)

// Histogram metrics
var (
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_latency_seconds",
		Help:      "Latency of upstream feed requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"feed"})
	PredictionConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_confidence",
		Help:      "Confidence of recorded predictions",
		Buckets:   []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
	})
	PipelineRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_run_duration_seconds",
		Help:      "Duration of prediction and reconciliation runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	}, []string{"job"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(UpstreamRequestsTotal)
		registry.MustRegister(CacheLookupsTotal)
		registry.MustRegister(PredictionsRecordedTotal)
		registry.MustRegister(ResultsReconciledTotal)
		registry.MustRegister(ScoringFailuresTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)

		registry.MustRegister(HitRate)
		registry.MustRegister(ReconciledRaces)
		registry.MustRegister(PendingPredictions)
		registry.MustRegister(CachedPrograms)

		registry.MustRegister(UpstreamLatency)
		registry.MustRegister(PredictionConfidence)
		registry.MustRegister(PipelineRunDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordUpstreamRequest records one upstream feed call and its latency.
func RecordUpstreamRequest(feed, outcome string, durationSeconds float64) {
	UpstreamRequestsTotal.WithLabelValues(feed, outcome).Inc()
	UpstreamLatency.WithLabelValues(feed).Observe(durationSeconds)
}

// RecordCacheHit records a fresh program cache hit.
func RecordCacheHit() {
	CacheLookupsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a program cache miss or expiry.
func RecordCacheMiss() {
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordStaleServed records a stale cache entry handed out as a fallback.
func RecordStaleServed() {
	CacheLookupsTotal.WithLabelValues("stale").Inc()
}

// UpdateCachedPrograms updates the cache size gauge.
func UpdateCachedPrograms(count int) {
	CachedPrograms.Set(float64(count))
}

// RecordPredictionRecorded records a persisted prediction.
func RecordPredictionRecorded(confidence float64) {
	PredictionsRecordedTotal.Inc()
	PredictionConfidence.Observe(confidence)
}

// RecordResultReconciled records a reconciled race.
func RecordResultReconciled(winHit bool) {
	label := "false"
	if winHit {
		label = "true"
	}
	ResultsReconciledTotal.WithLabelValues(label).Inc()
}

// RecordScoringFailure records a race that could not be scored.
func RecordScoringFailure() {
	ScoringFailuresTotal.Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}

// UpdateHitRates publishes the all-time hit rates.
func UpdateHitRates(n int, win, place, trifecta float64) {
	ReconciledRaces.Set(float64(n))
	HitRate.WithLabelValues("win").Set(win)
	HitRate.WithLabelValues("place").Set(place)
	HitRate.WithLabelValues("trifecta").Set(trifecta)
}

// UpdatePendingPredictions updates the pending predictions gauge.
func UpdatePendingPredictions(count int) {
	PendingPredictions.Set(float64(count))
}

// RecordRunDuration records how long a scheduled job took.
func RecordRunDuration(job string, durationSeconds float64) {
	PipelineRunDuration.WithLabelValues(job).Observe(durationSeconds)
}

// Package metrics defines the Prometheus metric collectors used by the
// prediction API and the training pipeline, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PredictionsTotal     *prometheus.CounterVec
	PredictionLatency    *prometheus.HistogramVec
	PredictedPrice       prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
	StageDuration        *prometheus.HistogramVec
	StageRows            *prometheus.GaugeVec
	ModelScore           *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates all metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictions_total",
				Help: "Total predictions by result (ok, invalid, error).",
			},
			[]string{"result"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prediction_latency_seconds",
				Help:    "Prediction latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"cache_status"},
		),
		PredictedPrice: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "predicted_price_crores",
				Help:    "Distribution of served price predictions in crores.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prediction_cache_hits_total",
				Help: "Total number of prediction cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "prediction_cache_misses_total",
				Help: "Total number of prediction cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Offline pipeline stage duration by stage and status.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"stage", "status"},
		),
		StageRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_stage_rows",
				Help: "Rows produced by the last run of each pipeline stage.",
			},
			[]string{"stage"},
		),
		ModelScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "model_score",
				Help: "Latest training metrics by split and metric name.",
			},
			[]string{"split", "metric"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.PredictionLatency,
		m.PredictedPrice,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
		m.StageDuration,
		m.StageRows,
		m.ModelScore,
	)

	return m
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"typeset-hq/gutenberg/pkg/health"
)

// Attempt outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeBusy     = "busy"
	OutcomeCanceled = "canceled"
)

// Config controls metric registration.
type Config struct {
	// Enabled turns metric collection on. When false, NewEngineMetrics
	// returns nil and all recording methods are safe no-ops.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "gutenberg".
	Namespace string `yaml:"namespace"`

	// Subsystem is the secondary prefix. Default: "engine".
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are the histogram buckets for render latency in
	// seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// EngineMetrics tracks health and performance of the rendering engines.
//
// Metrics:
//   - gutenberg_engine_health: engine health (1=healthy, 0.5=degraded, 0=down/unknown)
//   - gutenberg_engine_attempts_total: generation attempts by outcome
//   - gutenberg_engine_render_seconds: render latency per engine
//   - gutenberg_engine_in_flight: currently admitted tasks per engine
type EngineMetrics struct {
	healthGauge *prometheus.GaugeVec
	attempts    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inFlight    *prometheus.GaugeVec
}

// NewEngineMetrics creates and registers engine metrics with the provided
// registry. Returns nil when metrics are disabled; a nil *EngineMetrics is
// valid and all its methods are no-ops, so callers never need to branch.
func NewEngineMetrics(cfg Config, registry *prometheus.Registry) *EngineMetrics {
	if !cfg.Enabled || registry == nil {
		return nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "gutenberg"
	}
	subsystem := cfg.Subsystem
	if subsystem == "" {
		subsystem = "engine"
	}
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	}

	em := &EngineMetrics{
		healthGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "health",
				Help:      "Engine health status (1=healthy, 0.5=degraded, 0=unhealthy or unknown)",
			},
			[]string{"engine"},
		),

		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempts_total",
				Help:      "Generation attempts by engine and outcome",
			},
			[]string{"engine", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "render_seconds",
				Help:      "Render latency per engine in seconds",
				Buckets:   buckets,
			},
			[]string{"engine"},
		),

		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "in_flight",
				Help:      "Currently admitted generation tasks per engine",
			},
			[]string{"engine"},
		),
	}

	registry.MustRegister(
		em.healthGauge,
		em.attempts,
		em.latency,
		em.inFlight,
	)

	return em
}

// UpdateHealth mirrors a health record into the health gauge.
func (em *EngineMetrics) UpdateHealth(engine string, status health.Status) {
	if em == nil {
		return
	}

	var value float64
	switch status {
	case health.StatusHealthy:
		value = 1.0
	case health.StatusDegraded:
		value = 0.5
	}
	em.healthGauge.WithLabelValues(engine).Set(value)
}

// RecordAttempt counts one generation attempt with its outcome
// (success, error, timeout, busy, canceled).
func (em *EngineMetrics) RecordAttempt(engine, outcome string) {
	if em == nil {
		return
	}
	em.attempts.WithLabelValues(engine, outcome).Inc()
}

// RecordLatency records the render latency of a successful attempt.
func (em *EngineMetrics) RecordLatency(engine string, seconds float64) {
	if em == nil {
		return
	}
	em.latency.WithLabelValues(engine).Observe(seconds)
}

// SetInFlight records the number of currently admitted tasks for an engine.
func (em *EngineMetrics) SetInFlight(engine string, n int) {
	if em == nil {
		return
	}
	em.inFlight.WithLabelValues(engine).Set(float64(n))
}

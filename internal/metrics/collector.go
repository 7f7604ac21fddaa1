package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "condition"

// Collector records routing metrics on its own Prometheus registry.
//
// Metrics:
//   - condition_evaluations_total: decisions by routing mode and path taken
//   - condition_evaluation_errors_total: failed decisions by error kind
//   - condition_evaluation_duration_seconds: decision latency by routing mode
//   - condition_rulesets_loaded: number of named rule sets currently loaded
type Collector struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ruleSetsLoaded     prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics. If registry is
// nil a fresh one is created, so several collectors never collide.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of routing decisions",
			},
			[]string{"mode", "path"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_errors_total",
				Help:      "Total number of failed routing decisions",
			},
			[]string{"kind"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of routing decisions in seconds",
				// Condition trees evaluate in microseconds; LLM calls take seconds.
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12), // 10µs to ~42s
			},
			[]string{"mode"},
		),

		ruleSetsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rulesets_loaded",
				Help:      "Number of named rule sets currently loaded",
			},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.errorsTotal,
		c.evaluationDuration,
		c.ruleSetsLoaded,
	)

	return c
}

// RecordEvaluation records a completed routing decision.
func (c *Collector) RecordEvaluation(mode, path string, duration time.Duration) {
	c.evaluationsTotal.WithLabelValues(mode, path).Inc()
	c.evaluationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordError records a failed routing decision. kind is one of the error
// kinds reported by condition.KindOf, or "routing".
func (c *Collector) RecordError(kind string) {
	c.errorsTotal.WithLabelValues(kind).Inc()
}

// SetRuleSetsLoaded updates the loaded rule set gauge.
func (c *Collector) SetRuleSetsLoaded(n int) {
	c.ruleSetsLoaded.Set(float64(n))
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

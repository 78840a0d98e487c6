package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for potential evaluation. Collectors are
// registered on a private registry so several instances can coexist.
type Metrics struct {
	registry *prometheus.Registry

	// Evaluations by potential name and outcome ("ok" or a fault kind)
	Evaluations *prometheus.CounterVec

	// Points evaluated per request
	Points prometheus.Histogram

	// Evaluation latency by input kind
	EvaluateLatency *prometheus.HistogramVec

	// Potentials built from the catalog, by result
	Builds *prometheus.CounterVec

	// Potentials currently held in the service cache
	Cached prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "potential_evaluations_total",
			Help: "Total evaluations by potential and outcome",
		}, []string{"potential", "outcome"}),

		Points: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "potential_evaluation_points",
			Help:    "Number of input points per evaluation",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		}),

		EvaluateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "potential_evaluate_duration_seconds",
			Help:    "Duration of potential evaluation by input kind",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"input"}), // input: "scalar", "array"

		Builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "potential_builds_total",
			Help: "Potentials built from stored definitions by result",
		}, []string{"result"}),

		Cached: f.NewGauge(prometheus.GaugeOpts{
			Name: "potential_cache_entries",
			Help: "Built potentials held in the service cache",
		}),
	}
}

// Registry exposes the registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(potential, input, outcome string, points int, d time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(potential, outcome).Inc()
	m.Points.Observe(float64(points))
	m.EvaluateLatency.WithLabelValues(input).Observe(d.Seconds())
}

// IncrementBuild records a catalog build attempt.
func (m *Metrics) IncrementBuild(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Builds.WithLabelValues(result).Inc()
}

// SetCached records the cache size.
func (m *Metrics) SetCached(n int) {
	if m != nil {
		m.Cached.Set(float64(n))
	}
}

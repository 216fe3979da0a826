// Package metrics exposes Prometheus instrumentation for the agent,
// grounded on internal/interfaces/http/metrics.go's MetricsRegistry shape.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the agent exports.
type Registry struct {
	RequestDuration   *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	LLMCallDuration   *prometheus.HistogramVec
	LLMRetries        *prometheus.CounterVec
	DisambigConfidence prometheus.Histogram
	AmbiguousTickers  prometheus.Counter
	SessionsOpen      prometheus.Gauge
}

// NewRegistry builds and registers the agent's metrics.
func NewRegistry() *Registry {
	r := &Registry{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_request_duration_seconds",
			Help:    "Duration of /agent requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"task", "outcome"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_requests_total",
			Help: "Total /agent requests by outcome",
		}, []string{"task", "outcome"}),

		LLMCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_llm_call_duration_seconds",
			Help:    "Duration of LLM bridge calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"operation", "outcome"}),

		LLMRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_llm_retries_total",
			Help: "Total LLM bridge retry attempts",
		}, []string{"operation"}),

		DisambigConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_disambig_confidence",
			Help:    "Confidence returned by the LLM tie-breaker",
			Buckets: []float64{0, 0.2, 0.4, 0.6, 0.8, 0.82, 0.9, 1.0},
		}),

		AmbiguousTickers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agent_ambiguous_tickers_total",
			Help: "Total AmbiguousTicker signals raised",
		}),

		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_sessions_open",
			Help: "Current number of pending (open) sessions",
		}),
	}

	prometheus.MustRegister(
		r.RequestDuration, r.RequestsTotal, r.LLMCallDuration,
		r.LLMRetries, r.DisambigConfidence, r.AmbiguousTickers, r.SessionsOpen,
	)
	return r
}

// Handler returns the promhttp handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Handler returns the promhttp handler for this registry's metrics, so
// callers holding a *Registry don't need the package-level function.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the governed tool-call
// pipeline, registered once at process startup via promauto against the
// default registry.
type Metrics struct {
	CallsTotal    *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	RateLimited   *prometheus.CounterVec
	PolicyDenied  *prometheus.CounterVec
}

// NewMetrics constructs and registers the governance metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_tool_calls_total",
				Help: "Total governed tool calls by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		CallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coordinator_tool_call_duration_seconds",
				Help:    "Duration of governed tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"tool_name"},
		),
		RateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_tool_rate_limited_total",
				Help: "Total tool calls denied by the sliding-window rate limiter",
			},
			[]string{"tool_name"},
		),
		PolicyDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_tool_policy_denied_total",
				Help: "Total tool calls denied by tenant policy",
			},
			[]string{"tool_name"},
		),
	}
}

// Package observability exposes Prometheus instrumentation for the
// agent runtime.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the runtime publishes. Components take
// the struct and touch only the series they own.
type Metrics struct {
	ToolExecutions   *prometheus.CounterVec
	ToolDuration     *prometheus.HistogramVec
	ModelRequests    *prometheus.CounterVec
	ModelDuration    *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	PolicyRejections *prometheus.CounterVec
}

// NewMetrics registers all collectors against reg and returns them.
// Passing prometheus.DefaultRegisterer gives the usual process-global
// series; tests pass a fresh registry instead.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopagent_tool_executions_total",
			Help: "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopagent_tool_execution_seconds",
			Help:    "Tool execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		ModelRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopagent_model_requests_total",
			Help: "Model completion requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ModelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopagent_model_request_seconds",
			Help:    "Model completion latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shopagent_active_sessions",
			Help: "Number of live conversation sessions.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopagent_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		PolicyRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopagent_policy_rejections_total",
			Help: "Statements refused by the safety policy, by tool.",
		}, []string{"tool"}),
	}
}

// ObserveTool records one tool execution.
func (m *Metrics) ObserveTool(tool string, seconds float64, ok bool) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(tool, outcome(ok)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

// ObserveModel records one provider round trip.
func (m *Metrics) ObserveModel(provider string, seconds float64, ok bool) {
	if m == nil {
		return
	}
	m.ModelRequests.WithLabelValues(provider, outcome(ok)).Inc()
	m.ModelDuration.WithLabelValues(provider).Observe(seconds)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

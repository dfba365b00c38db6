// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CasesCreatedTotal tracks accepted intakes per program.
	CasesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_aid_cases_created_total",
			Help: "Total legal-aid intakes accepted",
		},
		[]string{"program", "urgency"},
	)

	// CaseTransitionsTotal tracks status transitions, rejected ones included.
	CaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legal_aid_case_transitions_total",
			Help: "Case status transitions",
		},
		[]string{"from", "to", "outcome"},
	)

	// AssistantMessagesTotal tracks chat turns appended to sessions.
	AssistantMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_messages_total",
			Help: "Total assistant chat turns",
		},
		[]string{"tier", "role"},
	)

	// QuotaRejectionsTotal tracks requests blocked by the daily quota.
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_quota_rejections_total",
			Help: "Assistant requests blocked by daily quota",
		},
		[]string{"tier", "kind"},
	)

	// GatewayDuration tracks generative-language calls.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_gateway_duration_seconds",
			Help:    "AI gateway call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGateway records one gateway call; outcome is success, empty or error.
func RecordGateway(provider, outcome string, duration float64) {
	GatewayDuration.WithLabelValues(provider, outcome).Observe(duration)
}

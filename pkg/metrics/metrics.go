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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
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

	// UsageDecisionsTotal tracks usage admission decisions.
	UsageDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_decisions_total",
			Help: "Usage tracker admission decisions",
		},
		[]string{"tenant_id", "period", "outcome"},
	)

	// UsageBucketsActive tracks live counter buckets in the usage tracker.
	UsageBucketsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "usage_buckets_active",
			Help: "Number of live usage counter buckets",
		},
	)

	// AggregationDuration tracks document aggregation duration.
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Document aggregation duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"tenant_id"},
	)

	// AggregationFilesTotal tracks files processed during aggregation.
	AggregationFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_files_total",
			Help: "Files processed during aggregation",
		},
		[]string{"tenant_id", "result"},
	)

	// AggregationSkippedTotal tracks folder entries skipped by the depth cap.
	AggregationSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregation_depth_skipped_total",
			Help: "Folders skipped because the traversal depth cap was reached",
		},
	)

	// LLMRequestDuration tracks LLM completion duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SessionsTotal tracks sessions opened.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_total",
			Help: "Total sessions opened",
		},
		[]string{"tenant_id"},
	)

	// TurnsTotal tracks conversation turns recorded.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turns_total",
			Help: "Total conversation turns recorded",
		},
		[]string{"tenant_id", "role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordUsageDecision records a usage admission decision.
func RecordUsageDecision(tenantID, period string, admitted bool) {
	outcome := "denied"
	if admitted {
		outcome = "admitted"
	}
	UsageDecisionsTotal.WithLabelValues(tenantID, period, outcome).Inc()
}

// RecordAggregation records metrics for a completed aggregation.
func RecordAggregation(tenantID string, duration float64, ok, failed int) {
	AggregationDuration.WithLabelValues(tenantID).Observe(duration)
	AggregationFilesTotal.WithLabelValues(tenantID, "ok").Add(float64(ok))
	AggregationFilesTotal.WithLabelValues(tenantID, "error").Add(float64(failed))
}

// RecordLLMRequest records metrics for an LLM completion.
func RecordLLMRequest(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

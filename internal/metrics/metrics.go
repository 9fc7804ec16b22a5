// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vish_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vish_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	AgentSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vish_agent_selections_total",
			Help: "Persona selections by role and reason",
		},
		[]string{"agent_role", "reason"},
	)

	RiskAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vish_risk_assessments_total",
			Help: "Risk assessments by level and source",
		},
		[]string{"level", "source"},
	)

	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vish_remote_calls_total",
			Help: "Calls to the knowledge service by call name and outcome",
		},
		[]string{"call", "outcome"},
	)

	RemoteConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vish_remote_connected",
			Help: "1 when the knowledge service is connected",
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vish_remote_breaker_state",
			Help: "Knowledge service circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vish_generation_latency_seconds",
			Help: "Reply generation latency in seconds",
		},
		[]string{"mode", "outcome"},
	)

	RetrievedChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vish_retrieved_chunks",
			Help:    "Number of knowledge chunks used per reply",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vish_active_sessions",
			Help: "Number of sessions held in memory",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vish_rate_limited_total",
			Help: "Requests rejected by the per-session rate limiter",
		},
	)

	TranscriptsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vish_transcripts_pruned_total",
			Help: "Archived turns removed by retention",
		},
	)
)

// Package metrics provides Prometheus metrics for the realtime-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpenChannels tracks the number of open provider channels.
	OpenChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_open_channels",
			Help: "Number of currently open provider channels",
		},
	)

	// SessionsCreated tracks the total number of sessions created.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_sessions_created_total",
			Help: "Total number of interview sessions created",
		},
	)

	// SessionsClosed tracks the total number of sessions ended or failed.
	SessionsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_sessions_closed_total",
			Help: "Total number of interview sessions ended or failed",
		},
	)

	// SessionStateTransitions tracks session state changes.
	SessionStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_session_state_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// MessagesRelayed counts client messages relayed to the provider by kind.
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_relayed_total",
			Help: "Total number of client messages relayed to the provider",
		},
		[]string{"kind"},
	)

	// NegotiationDuration tracks the duration of SDP relay round-trips.
	NegotiationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_negotiation_duration_seconds",
			Help:    "Duration of SDP offer/answer relay round-trips",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NegotiationFailures counts provider-rejected or failed negotiations.
	NegotiationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_negotiation_failures_total",
			Help: "Total number of failed SDP negotiations",
		},
	)

	// CredentialIssueDuration tracks ephemeral credential issuance time.
	CredentialIssueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_credential_issue_duration_seconds",
			Help:    "Duration of ephemeral credential issuance",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// HTTPRequestDuration tracks inbound request latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_http_request_duration_seconds",
			Help:    "Duration of inbound HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordSessionCreated counts a created session. The open-channel gauge is
// driven by the channel registry, not here.
func RecordSessionCreated() {
	SessionsCreated.Inc()
}

// RecordSessionClosed counts a session transitioning to a terminal state.
// Callers record it once per transition; idempotent repeats must not.
func RecordSessionClosed() {
	SessionsClosed.Inc()
}

// RecordChannelOpened increments the open-channel gauge.
func RecordChannelOpened() {
	OpenChannels.Inc()
}

// RecordChannelClosed decrements the open-channel gauge.
func RecordChannelClosed() {
	OpenChannels.Dec()
}

// RecordStateTransition records a session state change.
func RecordStateTransition(fromState, toState string) {
	SessionStateTransitions.WithLabelValues(fromState, toState).Inc()
}

// Package services – domain metrics
//
// Prometheus collectors for the intent engine and the inbound pipeline,
// registered on the default registry and served by /metrics.

package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// intentExecutions counts executor runs by action type and outcome.
	intentExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konsul_intent_executions_total",
			Help: "Intent executions by action type and outcome.",
		},
		[]string{"action_type", "outcome"},
	)

	// intentDuration observes executor latency, webhook round-trips included.
	intentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "konsul_intent_execution_duration_seconds",
			Help:    "Duration of intent executions in seconds.",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"action_type"},
	)

	// patternErrors counts trigger patterns that failed to compile at match time.
	patternErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "konsul_intent_pattern_errors_total",
			Help: "Trigger patterns that failed to compile during matching.",
		},
	)

	// inboundMessages counts normalized inbound messages by channel type and
	// pipeline outcome (processed, duplicate, skipped, failed).
	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konsul_inbound_messages_total",
			Help: "Inbound messages by channel type and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	// outboundFailures counts provider send failures by channel type.
	outboundFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konsul_outbound_send_failures_total",
			Help: "Failed provider sends by channel type.",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(intentExecutions, intentDuration, patternErrors, inboundMessages, outboundFailures)
}

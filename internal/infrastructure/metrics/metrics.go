package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mention_agent"
	subsystem = "bot"
)

// Mention agent metrics
var (
	// Notification outcomes per pass
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Notifications processed by outcome",
		},
		[]string{"outcome"},
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pass_duration_seconds",
			Help:      "Duration of one notification pass in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_total",
			Help:      "Notification passes by status",
		},
		[]string{"status"},
	)

	Watermark = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "watermark_timestamp_seconds",
			Help:      "Unix time of the last advanced notification watermark",
		},
	)

	// Model calls
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "model_calls_total",
			Help:      "Chat completion calls by status",
		},
		[]string{"model", "status"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "model_call_duration_seconds",
			Help:      "Chat completion latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	ModelRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "model_retries_total",
			Help:      "Chat completion retries",
		},
	)

	ConversationRounds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversation_rounds",
			Help:      "Model rounds used per conversation",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 12, 16},
		},
		[]string{"status"},
	)

	// Tool call counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_calls_total",
			Help:      "Total action invocations",
		},
		[]string{"tool_name", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_duration_seconds",
			Help:      "Action execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool_name"},
	)

	// Admission
	AdmissionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "admission_checks_total",
			Help:      "Admission checks by policy and result",
		},
		[]string{"policy", "result"},
	)

	AdmissionConsumeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "admission_consume_failures_total",
			Help:      "Tickets that could not be consumed after a successful conversation",
		},
	)
)

// RecordNotification records the outcome of one notification.
func RecordNotification(outcome string) {
	NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordPass records a completed pass.
func RecordPass(status string, durationSec float64) {
	PassesTotal.WithLabelValues(status).Inc()
	PassDuration.Observe(durationSec)
}

// SetWatermark publishes the current watermark as unix seconds.
func SetWatermark(unixSec float64) {
	Watermark.Set(unixSec)
}

// RecordModelCall records a single chat completion attempt.
func RecordModelCall(model, status string, durationSec float64) {
	ModelCallsTotal.WithLabelValues(model, status).Inc()
	ModelCallDuration.WithLabelValues(model).Observe(durationSec)
}

// RecordModelRetry counts one retry of a chat completion.
func RecordModelRetry() {
	ModelRetriesTotal.Inc()
}

// RecordConversation records how many rounds a conversation used.
func RecordConversation(status string, rounds int) {
	ConversationRounds.WithLabelValues(status).Observe(float64(rounds))
}

// RecordToolCall records an action invocation.
func RecordToolCall(toolName, status string, durationSec float64) {
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	ToolDuration.WithLabelValues(toolName).Observe(durationSec)
}

// RecordAdmissionCheck records a gate decision.
func RecordAdmissionCheck(policy, result string) {
	AdmissionChecksTotal.WithLabelValues(policy, result).Inc()
}

// RecordConsumeFailure counts a failed post-conversation consume.
func RecordConsumeFailure() {
	AdmissionConsumeFailures.Inc()
}

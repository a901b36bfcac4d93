package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/janhq/mention-agent"
)

// GetTracer returns the tracer for the mention agent.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartPassSpan starts a span covering one notification pass.
func StartPassSpan(ctx context.Context, passID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "notification.pass",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("pass.id", passID)),
	)
}

// StartNotificationSpan starts a span for the pipeline of one notification.
func StartNotificationSpan(ctx context.Context, uri, reason string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "notification.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("notification.uri", uri),
			attribute.String("notification.reason", reason),
		),
	)
}

// StartConversationSpan starts a span for an orchestrator run.
func StartConversationSpan(ctx context.Context, maxRounds int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "conversation.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("conversation.max_rounds", maxRounds)),
	)
}

// StartRoundSpan starts a span for one model round.
func StartRoundSpan(ctx context.Context, round int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "conversation.round",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("conversation.round", round)),
	)
}

// StartToolSpan starts a span for a dispatched action.
func StartToolSpan(ctx context.Context, callID, toolName string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "tool.dispatch."+toolName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.call_id", callID),
			attribute.String("tool.name", toolName),
		),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, severity string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.severity", severity))
}

// AddOutcomeEvent records the terminal outcome of a notification.
func AddOutcomeEvent(span trace.Span, outcome string) {
	span.AddEvent("notification.outcome",
		trace.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// AddStageTransition adds a pipeline stage transition event to a span.
func AddStageTransition(span trace.Span, from, to string) {
	span.AddEvent("stage.transition",
		trace.WithAttributes(
			attribute.String("stage.from", from),
			attribute.String("stage.to", to),
		),
	)
}

// AddRetryEvent adds a retry event to a span.
func AddRetryEvent(span trace.Span, attempt int, reason string) {
	span.AddEvent("retry",
		trace.WithAttributes(
			attribute.Int("retry.attempt", attempt),
			attribute.String("retry.reason", reason),
		),
	)
}

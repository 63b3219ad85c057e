package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "devteam"

// StartRouterAttemptSpan starts a span for one provider call in a fallback chain.
func StartRouterAttemptSpan(ctx context.Context, provider, model, agentType string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "router.attempt",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
			attribute.String("agent.type", agentType),
			attribute.Int("router.attempt", attempt),
		),
	)
}

// StartSweepSpan starts a span for one timeout sweep pass.
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "approval.sweep")
}

// StartDeliverySpan starts a span for one notification delivery attempt.
func StartDeliverySpan(ctx context.Context, notificationID, channel string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "notification.deliver",
		trace.WithAttributes(
			attribute.String("notification.id", notificationID),
			attribute.String("notification.channel", channel),
		),
	)
}

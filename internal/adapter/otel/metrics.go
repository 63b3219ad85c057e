package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "devteam"

// Metrics holds the orchestration metric instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ApprovalsCreated     metric.Int64Counter
	ApprovalsResolved    metric.Int64Counter
	SweepResolutions     metric.Int64Counter
	SweepFailures        metric.Int64Counter
	IterationsStarted    metric.Int64Counter
	NotificationAttempts metric.Int64Counter
	RouterAttempts       metric.Int64Counter
	RouterExhausted      metric.Int64Counter
	RouterLatency        metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ApprovalsCreated, err = meter.Int64Counter("devteam.approvals.created",
		metric.WithDescription("Number of approval requests opened"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsResolved, err = meter.Int64Counter("devteam.approvals.resolved",
		metric.WithDescription("Number of approval requests resolved, by status"))
	if err != nil {
		return nil, err
	}

	m.SweepResolutions, err = meter.Int64Counter("devteam.sweep.resolutions",
		metric.WithDescription("Timed-out approvals resolved by the sweep, by action"))
	if err != nil {
		return nil, err
	}

	m.SweepFailures, err = meter.Int64Counter("devteam.sweep.failures",
		metric.WithDescription("Timed-out approvals the sweep failed to resolve"))
	if err != nil {
		return nil, err
	}

	m.IterationsStarted, err = meter.Int64Counter("devteam.iterations.started",
		metric.WithDescription("Number of iteration sessions opened"))
	if err != nil {
		return nil, err
	}

	m.NotificationAttempts, err = meter.Int64Counter("devteam.notifications.attempts",
		metric.WithDescription("Notification delivery attempts, by channel and outcome"))
	if err != nil {
		return nil, err
	}

	m.RouterAttempts, err = meter.Int64Counter("devteam.router.attempts",
		metric.WithDescription("Chat provider attempts, by provider and outcome"))
	if err != nil {
		return nil, err
	}

	m.RouterExhausted, err = meter.Int64Counter("devteam.router.exhausted",
		metric.WithDescription("Chat requests that ran out of providers"))
	if err != nil {
		return nil, err
	}

	m.RouterLatency, err = meter.Float64Histogram("devteam.router.latency_seconds",
		metric.WithDescription("Provider call latency in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ApprovalCreated counts an opened approval request.
func (m *Metrics) ApprovalCreated(ctx context.Context, approverType string) {
	if m == nil {
		return
	}
	m.ApprovalsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("approver_type", approverType)))
}

// ApprovalResolved counts a resolution with its final status.
func (m *Metrics) ApprovalResolved(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.ApprovalsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// SweepResolved counts one sweep resolution.
func (m *Metrics) SweepResolved(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.SweepResolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// SweepFailed counts one request the sweep could not resolve.
func (m *Metrics) SweepFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.SweepFailures.Add(ctx, 1)
}

// IterationStarted counts an opened iteration session.
func (m *Metrics) IterationStarted(ctx context.Context, trigger string) {
	if m == nil {
		return
	}
	m.IterationsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// NotificationAttempt counts one delivery attempt.
func (m *Metrics) NotificationAttempt(ctx context.Context, channel string, ok bool) {
	if m == nil {
		return
	}
	m.NotificationAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("outcome", outcome(ok)),
	))
}

// RouterAttempt records one provider call and its latency.
func (m *Metrics) RouterAttempt(ctx context.Context, provider string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome(ok)),
	)
	m.RouterAttempts.Add(ctx, 1, attrs)
	m.RouterLatency.Record(ctx, seconds, attrs)
}

// RouterExhaustedChain counts a request whose fallback chain ran out.
func (m *Metrics) RouterExhaustedChain(ctx context.Context, agentType string) {
	if m == nil {
		return
	}
	m.RouterExhausted.Add(ctx, 1, metric.WithAttributes(attribute.String("agent_type", agentType)))
}

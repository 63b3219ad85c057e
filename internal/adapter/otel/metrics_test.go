package otel

import (
	"context"
	"testing"

	"github.com/Strob0t/devteam/internal/config"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.ApprovalCreated(ctx, "tech_lead")
	m.ApprovalResolved(ctx, "approved")
	m.SweepResolved(ctx, "auto_reject")
	m.SweepFailed(ctx)
	m.IterationStarted(ctx, "approval_rejected")
	m.NotificationAttempt(ctx, "email", true)
	m.RouterAttempt(ctx, "deepseek", false, 0.2)
	m.RouterExhaustedChain(ctx, "qa-engineer")
}

func TestNewMetricsOnGlobalProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RouterAttempt(context.Background(), "groq", true, 0.1)
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTel{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSpansStartWithoutProvider(t *testing.T) {
	_, span := StartRouterAttemptSpan(context.Background(), "deepseek", "deepseek-coder-v3", "qa-engineer", 1)
	span.End()
	_, span = StartSweepSpan(context.Background())
	span.End()
	_, span = StartDeliverySpan(context.Background(), "n1", "email")
	span.End()
}

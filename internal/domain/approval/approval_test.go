package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/devteam/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestCreateRequestValidate(t *testing.T) {
	valid := func() CreateRequest {
		return CreateRequest{
			WorkflowExecutionID: "exec-1",
			StepID:              "design",
			Config:              Config{ApproverType: ApproverTechLead},
		}
	}

	tests := []struct {
		name    string
		modify  func(*CreateRequest)
		wantErr error
	}{
		{name: "valid", modify: func(*CreateRequest) {}},
		{name: "missing execution", modify: func(c *CreateRequest) { c.WorkflowExecutionID = "" }, wantErr: ErrExecutionRequired},
		{name: "missing step", modify: func(c *CreateRequest) { c.StepID = "" }, wantErr: ErrStepRequired},
		{name: "missing approver type", modify: func(c *CreateRequest) { c.Config.ApproverType = "" }, wantErr: ErrApproverTypeRequired},
		{name: "bad fallback", modify: func(c *CreateRequest) { c.Config.FallbackAction = "shrug" }, wantErr: ErrInvalidFallback},
		{name: "negative timeout", modify: func(c *CreateRequest) { c.Config.TimeoutMinutes = intPtr(-1) }, wantErr: ErrNegativeTimeout},
		{name: "zero timeout ok", modify: func(c *CreateRequest) { c.Config.TimeoutMinutes = intPtr(0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.modify(&req)
			err := req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequestResolveOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Request{ID: "a1", Status: StatusPending}

	if err := r.Resolve(Response{Decision: DecisionApproved, ResolvedBy: "alice", ResolvedAt: now}); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if r.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", r.Status)
	}

	err := r.Resolve(Response{Decision: DecisionRejected, ResolvedBy: "bob", ResolvedAt: now})
	if !errors.Is(err, domain.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if r.Status != StatusApproved || r.Response.ResolvedBy != "alice" {
		t.Fatalf("second resolve must not change the request: %+v", r)
	}
}

func TestRequestIsDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{"no timeout", Request{Status: StatusPending}, false},
		{"future", Request{Status: StatusPending, TimeoutAt: &future}, false},
		{"past", Request{Status: StatusPending, TimeoutAt: &past}, true},
		{"exactly now", Request{Status: StatusPending, TimeoutAt: &now}, true},
		{"escalated past", Request{Status: StatusEscalated, TimeoutAt: &past}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.IsDue(now); got != tt.want {
				t.Fatalf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextTierIsMonotonic(t *testing.T) {
	for from := range escalationChain {
		to, ok := NextTier(from)
		if !ok {
			t.Fatalf("expected next tier for %s", from)
		}
		if Tier(to) <= Tier(from) {
			t.Fatalf("escalation %s -> %s does not increase tier", from, to)
		}
	}

	if _, ok := NextTier(ApproverEngineeringManager); ok {
		t.Fatal("engineering_manager is the top of its chain")
	}
	if _, ok := NextTier(ApproverSeniorStakeholder); ok {
		t.Fatal("senior_stakeholder is the top of its chain")
	}
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	created := now.Add(-2 * time.Hour)
	yesterday := now.AddDate(0, 0, -1)

	resolved := func(status Status, at time.Time) Request {
		kind := DecisionApproved
		if status == StatusRejected {
			kind = DecisionRejected
		}
		return Request{
			Status:    status,
			CreatedAt: at.Add(-30 * time.Minute),
			Response:  &Response{Decision: kind, ResolvedAt: at},
		}
	}

	requests := []Request{
		resolved(StatusApproved, now.Add(-time.Hour)),
		resolved(StatusApproved, now.Add(-10*time.Minute)),
		resolved(StatusRejected, now.Add(-5*time.Minute)),
		// Resolved yesterday: counts toward latency, not toward today.
		resolved(StatusApproved, yesterday),
		{Status: StatusPending, ApproverType: ApproverTechLead, CreatedAt: created},
		{Status: StatusEscalated, ApproverType: ApproverEngineeringManager, CreatedAt: created},
	}

	d := BuildDashboard(requests, now)
	if d.PendingCount != 1 {
		t.Errorf("expected 1 pending, got %d", d.PendingCount)
	}
	if d.ApprovedToday != 2 {
		t.Errorf("expected 2 approved today, got %d", d.ApprovedToday)
	}
	if d.RejectedToday != 1 {
		t.Errorf("expected 1 rejected today, got %d", d.RejectedToday)
	}
	if d.AverageResolutionMinutes != 30 {
		t.Errorf("expected 30 minute average, got %v", d.AverageResolutionMinutes)
	}
	if d.PendingByApproverType[ApproverTechLead] != 1 {
		t.Errorf("expected 1 pending for tech_lead, got %v", d.PendingByApproverType)
	}
}

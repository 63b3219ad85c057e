package iteration

import (
	"errors"
	"testing"
	"time"
)

func TestStartRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  StartRequest
		want error
	}{
		{"ok", StartRequest{WorkflowExecutionID: "e1", StepID: "design", Trigger: TriggerUserFeedback}, nil},
		{"no execution", StartRequest{StepID: "design", Trigger: TriggerUserFeedback}, ErrExecutionRequired},
		{"no step", StartRequest{WorkflowExecutionID: "e1", Trigger: TriggerUserFeedback}, ErrStepRequired},
		{"bad trigger", StartRequest{WorkflowExecutionID: "e1", StepID: "design", Trigger: "whim"}, ErrInvalidTrigger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStartRequestLimit(t *testing.T) {
	tests := []struct {
		own, fallback, want int
	}{
		{0, 0, DefaultMaxIterations},
		{0, 5, 5},
		{2, 5, 2},
		{-1, -1, DefaultMaxIterations},
	}
	for _, tt := range tests {
		r := &StartRequest{MaxIterations: tt.own}
		if got := r.Limit(tt.fallback); got != tt.want {
			t.Errorf("Limit(%d) with own %d = %d, want %d", tt.fallback, tt.own, got, tt.want)
		}
	}
}

func TestLatestCompleted(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := t0.Add(d); return &v }

	sessions := []Session{
		{ID: "s1", Status: StatusCompleted, CompletedAt: at(time.Minute)},
		{ID: "s2", Status: StatusFailed, CompletedAt: at(3 * time.Minute)},
		{ID: "s3", Status: StatusCompleted, CompletedAt: at(2 * time.Minute)},
		{ID: "s4", Status: StatusActive},
	}
	got, ok := LatestCompleted(sessions)
	if !ok || got.ID != "s3" {
		t.Fatalf("LatestCompleted = %v, %v; want s3", got, ok)
	}
	if _, ok := LatestCompleted(sessions[1:2]); ok {
		t.Fatal("failed sessions must not count as completed")
	}
}

func TestSessionClone(t *testing.T) {
	s := &Session{Changes: Changes{RequestedChanges: []string{"rename"}}, CompletedAt: new(time.Time)}
	c := s.Clone()
	c.Changes.RequestedChanges[0] = "mutated"
	*c.CompletedAt = time.Now()
	if s.Changes.RequestedChanges[0] != "rename" || !s.CompletedAt.IsZero() {
		t.Fatal("clone shares state with the original")
	}
}

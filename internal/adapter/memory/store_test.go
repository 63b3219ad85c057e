package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/database"
)

func newPending(id string, created time.Time) *approval.Request {
	return &approval.Request{
		ID:                  id,
		WorkflowExecutionID: "exec-1",
		StepID:              "review",
		ApproverType:        approval.ApproverTechLead,
		Status:              approval.StatusPending,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

func TestApprovalRoundTripIsolated(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := newPending("a1", time.Now())
	r.Approver = &approval.Approver{Email: "lead@example.com"}

	if err := s.CreateApproval(ctx, r); err != nil {
		t.Fatalf("CreateApproval: %v", err)
	}
	r.Approver.Email = "mutated@example.com"

	got, err := s.GetApproval(ctx, "a1")
	if err != nil {
		t.Fatalf("GetApproval: %v", err)
	}
	if got.Approver.Email != "lead@example.com" {
		t.Fatalf("store shares memory with caller: %q", got.Approver.Email)
	}

	if err := s.CreateApproval(ctx, newPending("a1", time.Now())); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate create: want ErrConflict, got %v", err)
	}
	if _, err := s.GetApproval(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListApprovalsFilterAndOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	due := base.Add(-time.Minute)
	later := base.Add(time.Hour)

	a := newPending("b", base.Add(2*time.Second))
	a.TimeoutAt = &due
	b := newPending("a", base.Add(time.Second))
	b.TimeoutAt = &later
	c := newPending("c", base)
	c.Status = approval.StatusApproved
	c.WorkflowExecutionID = "exec-2"
	for _, r := range []*approval.Request{a, b, c} {
		if err := s.CreateApproval(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.ListApprovals(ctx, database.ApprovalFilter{})
	if len(all) != 3 || all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
		t.Fatalf("unexpected order: %+v", ids(all))
	}

	pending, _ := s.ListApprovals(ctx, database.ApprovalFilter{
		WorkflowExecutionID: "exec-1",
		Statuses:            []approval.Status{approval.StatusPending},
	})
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending for exec-1, got %v", ids(pending))
	}

	dueList, _ := s.ListApprovals(ctx, database.ApprovalFilter{DueBefore: &base})
	if len(dueList) != 1 || dueList[0].ID != "b" {
		t.Fatalf("expected only b due, got %v", ids(dueList))
	}
}

func TestTransitionApprovalCheckAndSet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateApproval(ctx, newPending("a1", time.Now())); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.TransitionApproval(ctx, "a1", approval.StatusPending, func(r *approval.Request) error {
				return r.Resolve(approval.Response{Decision: approval.DecisionApproved, ResolvedBy: "u", ResolvedAt: time.Now()})
			})
			if err == nil {
				wins.Add(1)
			} else if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestTransitionApprovalFnErrorAborts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateApproval(ctx, newPending("a1", time.Now())); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	_, err := s.TransitionApproval(ctx, "a1", approval.StatusPending, func(r *approval.Request) error {
		r.Status = approval.StatusRejected
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	got, _ := s.GetApproval(ctx, "a1")
	if got.Status != approval.StatusPending {
		t.Fatalf("aborted transition persisted: %s", got.Status)
	}
}

func TestIterationsOrderedAndUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, n := range []int{2, 1} {
		err := s.CreateIteration(ctx, &iteration.Session{
			ID: "it-" + string(rune('0'+n)), WorkflowExecutionID: "e", StepID: "s",
			IterationNumber: n, Status: iteration.StatusActive,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	dup := &iteration.Session{ID: "other", WorkflowExecutionID: "e", StepID: "s", IterationNumber: 1}
	if err := s.CreateIteration(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate number: want ErrConflict, got %v", err)
	}

	list, _ := s.ListIterations(ctx, "e", "s")
	if len(list) != 2 || list[0].IterationNumber != 1 || list[1].IterationNumber != 2 {
		t.Fatalf("unexpected list %+v", list)
	}

	_, err := s.TransitionIteration(ctx, "it-1", iteration.StatusCompleted, func(*iteration.Session) error { return nil })
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("wrong from-status: want ErrConflict, got %v", err)
	}
}

func TestNotificationsByStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	n := &notification.Notification{ID: "n1", Status: notification.StatusPending, CreatedAt: time.Now()}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}
	n.Status = notification.StatusFailed
	if err := s.UpdateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}
	failed, _ := s.ListNotifications(ctx, notification.StatusFailed)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed, got %d", len(failed))
	}
	if err := s.UpdateNotification(ctx, &notification.Notification{ID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStepResults(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if _, ok, _ := s.StepResult(ctx, "e", "s"); ok {
		t.Fatal("expected no result")
	}
	_ = s.RecordStepResult(ctx, "e", "s", "v1")
	v, ok, err := s.StepResult(ctx, "e", "s")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("got %v %v %v", v, ok, err)
	}
}

func TestSessionsPostMessage(t *testing.T) {
	sessions := NewSessions()
	ctx := context.Background()
	id, err := sessions.CreateSession(ctx, "e:s:iteration-1", "iteration")
	if err != nil {
		t.Fatal(err)
	}
	if err := sessions.PostMessage(ctx, id, "kickoff", map[string]string{"step": "s"}); err != nil {
		t.Fatal(err)
	}
	got, ok := sessions.Get(id)
	if !ok || len(got.Messages) != 1 || got.Messages[0].Hints["step"] != "s" {
		t.Fatalf("unexpected session %+v", got)
	}
	if err := sessions.PostMessage(ctx, "missing", "x", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func ids(rs []approval.Request) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].ID
	}
	return out
}

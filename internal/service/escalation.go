package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/database"
	"github.com/Strob0t/devteam/internal/scheduler"
)

// SweepResult counts what one sweep pass did.
type SweepResult struct {
	Checked   int `json:"checked"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	TimedOut  int `json:"timed_out"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// sweepOutcome is what happened to one due request.
type sweepOutcome int

const (
	outcomeSkipped sweepOutcome = iota
	outcomeApproved
	outcomeRejected
	outcomeTimedOut
	outcomeEscalated
)

// EscalationService applies the timeout policy of overdue approval requests.
type EscalationService struct {
	store              database.Approvals
	notify             *NotificationDispatcher
	hub                broadcast.Broadcaster
	sched              scheduler.Scheduler
	metrics            *cfotel.Metrics
	contacts           Contacts
	cfg                config.Approval
	escalationAttempts int
	now                func() time.Time
}

// NewEscalationService creates an EscalationService. escalationAttempts is
// the delivery budget of escalation notifications.
func NewEscalationService(
	store database.Approvals,
	notify *NotificationDispatcher,
	hub broadcast.Broadcaster,
	sched scheduler.Scheduler,
	contacts Contacts,
	cfg config.Approval,
	escalationAttempts int,
) *EscalationService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	if cfg.EscalationExtension <= 0 {
		cfg.EscalationExtension = 24 * time.Hour
	}
	if escalationAttempts < 1 {
		escalationAttempts = 5
	}
	return &EscalationService{
		store:              store,
		notify:             notify,
		hub:                hub,
		sched:              sched,
		contacts:           contacts,
		cfg:                cfg,
		escalationAttempts: escalationAttempts,
		now:                time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (s *EscalationService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Start registers the sweep on the scheduler and returns its cancel func.
func (s *EscalationService) Start() func() {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("approval sweep started", "interval", interval)
	return s.sched.Every(interval, func(ctx context.Context) {
		s.Sweep(ctx)
	})
}

// Sweep resolves every pending request whose timeout has passed. Each
// request is handled on its own; one failure does not stop the pass.
func (s *EscalationService) Sweep(ctx context.Context) SweepResult {
	ctx, span := cfotel.StartSweepSpan(ctx)
	defer span.End()

	var res SweepResult
	now := s.now().UTC()
	due, err := s.store.ListApprovals(ctx, database.ApprovalFilter{
		Statuses:  []approval.Status{approval.StatusPending},
		DueBefore: &now,
	})
	if err != nil {
		span.RecordError(err)
		slog.Error("approval sweep: list due requests", "error", err)
		return res
	}

	for i := range due {
		r := &due[i]
		res.Checked++
		out, err := s.resolveIsolated(ctx, r, now)
		if err != nil {
			res.Failed++
			s.metrics.SweepFailed(ctx)
			slog.Error("approval sweep: resolve failed", "approval_id", r.ID, "error", err)
			continue
		}
		switch out {
		case outcomeApproved:
			res.Approved++
		case outcomeRejected:
			res.Rejected++
		case outcomeTimedOut:
			res.TimedOut++
		case outcomeEscalated:
			res.Escalated++
		default:
			res.Skipped++
		}
	}

	if res.Checked > 0 {
		slog.Info("approval sweep finished",
			"checked", res.Checked,
			"approved", res.Approved,
			"rejected", res.Rejected,
			"timed_out", res.TimedOut,
			"escalated", res.Escalated,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	return res
}

// resolveIsolated turns a panic while resolving one request into an error.
func (s *EscalationService) resolveIsolated(ctx context.Context, r *approval.Request, now time.Time) (out sweepOutcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic resolving %s: %v", r.ID, p)
		}
	}()
	return s.resolve(ctx, r, now)
}

func (s *EscalationService) resolve(ctx context.Context, r *approval.Request, now time.Time) (sweepOutcome, error) {
	switch r.FallbackAction {
	case approval.FallbackAutoApprove:
		return s.autoResolve(ctx, r, approval.DecisionApproved, now)
	case approval.FallbackAutoReject:
		return s.autoResolve(ctx, r, approval.DecisionRejected, now)
	case approval.FallbackEscalate:
		return s.escalate(ctx, r, now)
	default:
		return s.timeout(ctx, r, now)
	}
}

func (s *EscalationService) autoResolve(ctx context.Context, r *approval.Request, decision approval.DecisionKind, now time.Time) (sweepOutcome, error) {
	resp := approval.Response{
		Decision:   decision,
		Feedback:   "resolved automatically after timeout",
		ResolvedBy: approval.SystemResolver,
		ResolvedAt: now,
	}
	updated, err := s.store.TransitionApproval(ctx, r.ID, approval.StatusPending, func(cur *approval.Request) error {
		return cur.Resolve(resp)
	})
	if errors.Is(err, domain.ErrConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	s.metrics.SweepResolved(ctx, string(r.FallbackAction))
	s.metrics.ApprovalResolved(ctx, string(updated.Status))
	s.hub.BroadcastEvent(ctx, broadcast.EventApprovalResolved, approvalEvent(updated))
	slog.Info("approval auto-resolved", "approval_id", r.ID, "status", updated.Status)

	if decision == approval.DecisionApproved {
		return outcomeApproved, nil
	}
	return outcomeRejected, nil
}

func (s *EscalationService) timeout(ctx context.Context, r *approval.Request, now time.Time) (sweepOutcome, error) {
	updated, err := s.store.TransitionApproval(ctx, r.ID, approval.StatusPending, func(cur *approval.Request) error {
		cur.Status = approval.StatusTimeout
		cur.UpdatedAt = now
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	s.metrics.SweepResolved(ctx, "timeout")
	s.metrics.ApprovalResolved(ctx, string(updated.Status))
	s.hub.BroadcastEvent(ctx, broadcast.EventApprovalResolved, approvalEvent(updated))
	slog.Info("approval timed out", "approval_id", r.ID)
	return outcomeTimedOut, nil
}

// escalate hands the request to the next approver tier. Without a next
// tier or a contact for it the request is left pending.
func (s *EscalationService) escalate(ctx context.Context, r *approval.Request, now time.Time) (sweepOutcome, error) {
	next, ok := approval.NextTier(r.ApproverType)
	if !ok {
		slog.Warn("approval escalation: no next tier", "approval_id", r.ID, "approver_type", r.ApproverType)
		return outcomeSkipped, nil
	}
	contact, ok := s.contacts.Escalation[next]
	if !ok || contact.IsZero() {
		slog.Warn("approval escalation: no contact for tier", "approval_id", r.ID, "tier", next)
		return outcomeSkipped, nil
	}

	updated, err := s.store.TransitionApproval(ctx, r.ID, approval.StatusPending, func(cur *approval.Request) error {
		base := now
		if cur.TimeoutAt != nil {
			base = *cur.TimeoutAt
		}
		extended := base.Add(s.cfg.EscalationExtension)
		approver := contact

		cur.Status = approval.StatusEscalated
		cur.ApproverType = next
		cur.Approver = &approver
		cur.TimeoutAt = &extended
		cur.UpdatedAt = now
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	if s.notify != nil {
		_, dispatchErr := s.notify.Dispatch(ctx, &notification.Notification{
			Type:          notification.TypeEscalation,
			RecipientType: string(next),
			Recipient:     toRecipient(contact),
			MaxAttempts:   s.escalationAttempts,
			Content: notification.Content{
				Subject:  "Escalated approval: " + updated.Content.Title,
				Message:  escalationMessage(r, updated),
				Priority: notification.PriorityUrgent,
			},
		})
		if dispatchErr != nil {
			slog.Warn("escalation notification dispatch failed", "approval_id", r.ID, "error", dispatchErr)
		}
	}

	s.metrics.SweepResolved(ctx, string(approval.FallbackEscalate))
	s.hub.BroadcastEvent(ctx, broadcast.EventApprovalEscalated, approvalEvent(updated))
	slog.Info("approval escalated",
		"approval_id", r.ID,
		"from", r.ApproverType,
		"to", next,
		"timeout_at", updated.TimeoutAt,
	)
	return outcomeEscalated, nil
}

func escalationMessage(before, after *approval.Request) string {
	msg := fmt.Sprintf("No %s decided on step %s of workflow %s in time. It is now assigned to %s.",
		before.ApproverType, firstNonEmpty(before.StepName, before.StepID), before.WorkflowExecutionID, after.ApproverType)
	if after.TimeoutAt != nil {
		msg += " New deadline: " + after.TimeoutAt.Format(time.RFC3339) + "."
	}
	return msg
}

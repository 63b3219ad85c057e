package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/database"
)

// ApprovalEvent is broadcast when an approval request changes state.
type ApprovalEvent struct {
	ApprovalID          string                `json:"approval_id"`
	WorkflowExecutionID string                `json:"workflow_execution_id"`
	StepID              string                `json:"step_id"`
	ApproverType        approval.ApproverType `json:"approver_type"`
	Status              approval.Status       `json:"status"`
	ResolvedBy          string                `json:"resolved_by,omitempty"`
}

// ApprovalService opens approval gates on workflow steps and records the
// decisions made on them.
type ApprovalService struct {
	store      database.Approvals
	iterations *IterationService
	notify     *NotificationDispatcher
	hub        broadcast.Broadcaster
	metrics    *cfotel.Metrics
	contacts   Contacts
	cfg        config.Approval
	now        func() time.Time
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(
	store database.Approvals,
	iterations *IterationService,
	notify *NotificationDispatcher,
	hub broadcast.Broadcaster,
	contacts Contacts,
	cfg config.Approval,
) *ApprovalService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &ApprovalService{
		store:      store,
		iterations: iterations,
		notify:     notify,
		hub:        hub,
		contacts:   contacts,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (s *ApprovalService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// CreateRequest opens a pending approval request and notifies the approver.
func (s *ApprovalService) CreateRequest(ctx context.Context, req approval.CreateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	now := s.now().UTC()
	r := &approval.Request{
		ID:                  uuid.New().String(),
		WorkflowExecutionID: req.WorkflowExecutionID,
		StepID:              req.StepID,
		StepName:            req.StepName,
		ApproverType:        req.Config.ApproverType,
		Status:              approval.StatusPending,
		Content: approval.Content{
			Title:       req.Config.Title,
			Description: req.Config.Description,
			Artifacts:   req.Artifacts,
			Criteria:    req.Config.Criteria,
			Context:     req.Context,
		},
		FallbackAction: req.Config.FallbackAction,
		Approver:       req.Approver,
		MaxIterations:  req.Config.MaxIterations,
		Priority:       req.Config.Priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if r.Content.Title == "" {
		r.Content.Title = "Review " + firstNonEmpty(req.StepName, req.StepID)
	}
	if r.MaxIterations < 1 {
		r.MaxIterations = s.cfg.DefaultMaxIterations
	}
	if req.Config.TimeoutMinutes != nil {
		at := now.Add(time.Duration(*req.Config.TimeoutMinutes) * time.Minute)
		r.TimeoutAt = &at
	}

	if err := s.store.CreateApproval(ctx, r); err != nil {
		return "", fmt.Errorf("create approval: %w", err)
	}
	s.metrics.ApprovalCreated(ctx, string(r.ApproverType))

	s.dispatch(ctx, &notification.Notification{
		Type:          notification.TypeApprovalRequest,
		RecipientType: string(r.ApproverType),
		Recipient:     s.contacts.recipientFor(r.ApproverType, r.Approver),
		Content: notification.Content{
			Subject:   "Approval required: " + r.Content.Title,
			Message:   approvalMessage(r),
			ActionURL: s.actionURL(r.ID),
			Priority:  notificationPriority(r.Priority),
		},
	})

	s.hub.BroadcastEvent(ctx, broadcast.EventApprovalCreated, approvalEvent(r))
	slog.Info("approval requested",
		"approval_id", r.ID,
		"workflow_execution_id", r.WorkflowExecutionID,
		"step_id", r.StepID,
		"approver_type", r.ApproverType,
	)
	return r.ID, nil
}

// ProcessResponse records a decision on a pending request. A decision for
// an unknown or already resolved request is not accepted and is not an error.
func (s *ApprovalService) ProcessResponse(ctx context.Context, id string, d approval.Decision) (*approval.ProcessResult, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	resp := approval.Response{
		Decision:          d.Decision,
		Feedback:          d.Feedback,
		SuggestedChanges:  append([]string(nil), d.SuggestedChanges...),
		IterationRequired: d.IterationRequired,
		ResolvedBy:        d.ResolvedBy,
		ResolvedAt:        s.now().UTC(),
	}
	r, err := s.store.TransitionApproval(ctx, id, approval.StatusPending, func(r *approval.Request) error {
		return r.Resolve(resp)
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &approval.ProcessResult{Accepted: false, Reason: "approval request not found"}, nil
	case errors.Is(err, domain.ErrConflict):
		return &approval.ProcessResult{Accepted: false, Reason: domain.ErrNotPending.Error()}, nil
	case err != nil:
		return nil, fmt.Errorf("resolve approval %s: %w", id, err)
	}

	s.metrics.ApprovalResolved(ctx, string(r.Status))
	s.hub.BroadcastEvent(ctx, broadcast.EventApprovalResolved, approvalEvent(r))
	slog.Info("approval resolved",
		"approval_id", r.ID,
		"status", r.Status,
		"resolved_by", d.ResolvedBy,
		"iteration_required", d.IterationRequired,
	)

	if r.Status == approval.StatusApproved {
		return &approval.ProcessResult{Accepted: true, NextAction: approval.NextContinue}, nil
	}
	if !d.IterationRequired || s.iterations == nil {
		return &approval.ProcessResult{Accepted: true, NextAction: approval.NextStop}, nil
	}

	iterID, err := s.iterations.Start(ctx, iteration.StartRequest{
		WorkflowExecutionID: r.WorkflowExecutionID,
		StepID:              r.StepID,
		Trigger:             iteration.TriggerApprovalRejected,
		TriggerDetails:      d.Feedback,
		RequestedChanges:    d.SuggestedChanges,
		MaxIterations:       r.MaxIterations,
	})
	if errors.Is(err, domain.ErrMaxIterations) {
		return &approval.ProcessResult{
			Accepted:   true,
			NextAction: approval.NextStop,
			Reason:     err.Error(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start iteration after rejecting %s: %w", id, err)
	}

	s.dispatch(ctx, &notification.Notification{
		Type:          notification.TypeIterationStarted,
		RecipientType: string(r.ApproverType),
		Recipient:     s.contacts.recipientFor(r.ApproverType, r.Approver),
		Content: notification.Content{
			Subject:   "Iteration started: " + r.Content.Title,
			Message:   iterationStartedMessage(r, d),
			ActionURL: s.actionURL(r.ID),
			Priority:  notificationPriority(r.Priority),
		},
	})

	return &approval.ProcessResult{
		Accepted:           true,
		NextAction:         approval.NextIterate,
		IterationSessionID: iterID,
	}, nil
}

// GetStatus returns one approval request.
func (s *ApprovalService) GetStatus(ctx context.Context, id string) (*approval.Request, error) {
	return s.store.GetApproval(ctx, id)
}

// ListPending returns the pending requests of a workflow execution.
func (s *ApprovalService) ListPending(ctx context.Context, workflowExecutionID string) ([]approval.Request, error) {
	return s.store.ListApprovals(ctx, database.ApprovalFilter{
		WorkflowExecutionID: workflowExecutionID,
		Statuses:            []approval.Status{approval.StatusPending},
	})
}

// ListPendingForApprover returns the pending requests addressed to an approver type.
func (s *ApprovalService) ListPendingForApprover(ctx context.Context, approverType approval.ApproverType) ([]approval.Request, error) {
	return s.store.ListApprovals(ctx, database.ApprovalFilter{
		ApproverType: approverType,
		Statuses:     []approval.Status{approval.StatusPending},
	})
}

// Dashboard summarizes approval activity as of now.
func (s *ApprovalService) Dashboard(ctx context.Context) (*approval.Dashboard, error) {
	all, err := s.store.ListApprovals(ctx, database.ApprovalFilter{})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	d := approval.BuildDashboard(all, s.now())
	return &d, nil
}

// dispatch hands a notification to the dispatcher. Dispatch failures are
// logged and never fail the approval flow.
func (s *ApprovalService) dispatch(ctx context.Context, n *notification.Notification) {
	if s.notify == nil {
		return
	}
	if _, err := s.notify.Dispatch(ctx, n); err != nil {
		slog.Warn("notification dispatch failed", "type", n.Type, "recipient_type", n.RecipientType, "error", err)
	}
}

func (s *ApprovalService) actionURL(id string) string {
	if s.cfg.ActionBaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.cfg.ActionBaseURL, "/") + "/approvals/" + id
}

func approvalMessage(r *approval.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %s of workflow %s is waiting for %s approval.\n",
		firstNonEmpty(r.StepName, r.StepID), r.WorkflowExecutionID, r.ApproverType)
	if r.Content.Description != "" {
		b.WriteString(r.Content.Description)
		b.WriteString("\n")
	}
	if n := len(r.Content.Artifacts); n > 0 {
		fmt.Fprintf(&b, "Artifacts to review: %d\n", n)
	}
	if r.TimeoutAt != nil {
		fmt.Fprintf(&b, "Decision due by %s", r.TimeoutAt.Format(time.RFC3339))
		if r.FallbackAction != "" {
			fmt.Fprintf(&b, " (then %s)", r.FallbackAction)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func iterationStartedMessage(r *approval.Request, d approval.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rejected step %s and requested another iteration.\n",
		d.ResolvedBy, firstNonEmpty(r.StepName, r.StepID))
	if d.Feedback != "" {
		fmt.Fprintf(&b, "Feedback: %s\n", d.Feedback)
	}
	for i, c := range d.SuggestedChanges {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	return b.String()
}

func notificationPriority(p string) notification.Priority {
	switch notification.Priority(strings.ToLower(p)) {
	case notification.PriorityLow:
		return notification.PriorityLow
	case notification.PriorityHigh:
		return notification.PriorityHigh
	case notification.PriorityUrgent:
		return notification.PriorityUrgent
	default:
		return notification.PriorityMedium
	}
}

func approvalEvent(r *approval.Request) ApprovalEvent {
	ev := ApprovalEvent{
		ApprovalID:          r.ID,
		WorkflowExecutionID: r.WorkflowExecutionID,
		StepID:              r.StepID,
		ApproverType:        r.ApproverType,
		Status:              r.Status,
	}
	if r.Response != nil {
		ev.ResolvedBy = r.Response.ResolvedBy
	}
	return ev
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

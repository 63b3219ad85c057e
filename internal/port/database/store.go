// Package database defines the persistence ports (interfaces) for the orchestration core.
package database

import (
	"context"
	"time"

	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/domain/notification"
)

// ApprovalFilter selects approval requests. Zero fields match everything.
type ApprovalFilter struct {
	WorkflowExecutionID string
	ApproverType        approval.ApproverType
	Statuses            []approval.Status
	DueBefore           *time.Time // pending requests whose timeout_at <= DueBefore
}

// Matches reports whether r satisfies the filter.
func (f *ApprovalFilter) Matches(r *approval.Request) bool {
	if f.WorkflowExecutionID != "" && r.WorkflowExecutionID != f.WorkflowExecutionID {
		return false
	}
	if f.ApproverType != "" && r.ApproverType != f.ApproverType {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DueBefore != nil && !r.IsDue(*f.DueBefore) {
		return false
	}
	return true
}

// Approvals persists approval requests.
type Approvals interface {
	CreateApproval(ctx context.Context, r *approval.Request) error
	// GetApproval returns domain.ErrNotFound for unknown ids.
	GetApproval(ctx context.Context, id string) (*approval.Request, error)
	ListApprovals(ctx context.Context, filter ApprovalFilter) ([]approval.Request, error)
	// TransitionApproval atomically loads the request, requires its status to equal
	// from, applies fn and persists the result. A status mismatch returns
	// domain.ErrConflict and leaves the request unchanged; an error from fn aborts
	// the write.
	TransitionApproval(ctx context.Context, id string, from approval.Status, fn func(*approval.Request) error) (*approval.Request, error)
}

// Iterations persists iteration sessions.
type Iterations interface {
	CreateIteration(ctx context.Context, s *iteration.Session) error
	GetIteration(ctx context.Context, id string) (*iteration.Session, error)
	// ListIterations returns the sessions of one step ordered by iteration number.
	ListIterations(ctx context.Context, workflowExecutionID, stepID string) ([]iteration.Session, error)
	// TransitionIteration follows the same contract as TransitionApproval.
	TransitionIteration(ctx context.Context, id string, from iteration.Status, fn func(*iteration.Session) error) (*iteration.Session, error)
}

// Notifications persists outbound notifications.
type Notifications interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	GetNotification(ctx context.Context, id string) (*notification.Notification, error)
	UpdateNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, status notification.Status) ([]notification.Notification, error)
}

// StepResults reads prior step output from the workflow execution record.
type StepResults interface {
	// StepResult returns the most recent result recorded for the step, with ok=false
	// when the step has none.
	StepResult(ctx context.Context, workflowExecutionID, stepID string) (result any, ok bool, err error)
}

// Store bundles every persistence port. Adapters implement all of it.
type Store interface {
	Approvals
	Iterations
	Notifications
	StepResults
}

// Package iteration defines domain types for bounded re-work cycles on a workflow step.
package iteration

import (
	"errors"
	"time"
)

// DefaultMaxIterations applies when a caller does not supply a limit.
const DefaultMaxIterations = 3

// NoPreviousVersion marks an iteration that has nothing to build on.
const NoPreviousVersion = "no previous version available"

// Trigger identifies why an iteration was started.
type Trigger string

const (
	TriggerUserFeedback     Trigger = "user_feedback"
	TriggerValidationFailed Trigger = "validation_failed"
	TriggerApprovalRejected Trigger = "approval_rejected"
)

// Status represents the lifecycle state of an iteration session.
type Status string

const (
	StatusActive               Status = "active"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
	StatusMaxIterationsReached Status = "max_iterations_reached"
)

// Changes captures what the iteration started from and what it produced.
type Changes struct {
	PreviousVersion    any      `json:"previous_version"`
	RequestedChanges   []string `json:"requested_changes"`
	ImplementedChanges []string `json:"implemented_changes,omitempty"`
	NewVersion         any      `json:"new_version,omitempty"`
}

// Session is one re-work attempt on a (workflow execution, step) pair.
type Session struct {
	ID                     string     `json:"id"`
	WorkflowExecutionID    string     `json:"workflow_execution_id"`
	StepID                 string     `json:"step_id"`
	IterationNumber        int        `json:"iteration_number"`
	MaxIterations          int        `json:"max_iterations"`
	Trigger                Trigger    `json:"trigger"`
	TriggerDetails         string     `json:"trigger_details"`
	Changes                Changes    `json:"changes"`
	Status                 Status     `json:"status"`
	CollaborationSessionID string     `json:"collaboration_session_id"`
	CreatedAt              time.Time  `json:"created_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// StartRequest holds the fields for opening a new iteration.
type StartRequest struct {
	WorkflowExecutionID string   `json:"workflow_execution_id"`
	StepID              string   `json:"step_id"`
	Trigger             Trigger  `json:"trigger"`
	TriggerDetails      string   `json:"trigger_details"`
	RequestedChanges    []string `json:"requested_changes"`
	MaxIterations       int      `json:"max_iterations,omitempty"`
}

var (
	ErrExecutionRequired = errors.New("workflow_execution_id is required")
	ErrStepRequired      = errors.New("step_id is required")
	ErrInvalidTrigger    = errors.New("invalid iteration trigger")
)

// Validate checks the start request for correctness.
func (r *StartRequest) Validate() error {
	if r.WorkflowExecutionID == "" {
		return ErrExecutionRequired
	}
	if r.StepID == "" {
		return ErrStepRequired
	}
	switch r.Trigger {
	case TriggerUserFeedback, TriggerValidationFailed, TriggerApprovalRejected:
	default:
		return ErrInvalidTrigger
	}
	return nil
}

// Limit returns the effective iteration cap: the request's own limit, else
// fallback, else DefaultMaxIterations.
func (r *StartRequest) Limit(fallback int) int {
	switch {
	case r.MaxIterations > 0:
		return r.MaxIterations
	case fallback > 0:
		return fallback
	default:
		return DefaultMaxIterations
	}
}

// LatestCompleted returns the most recently completed session in sessions, if any.
func LatestCompleted(sessions []Session) (*Session, bool) {
	var latest *Session
	for i := range sessions {
		s := &sessions[i]
		if s.Status != StatusCompleted || s.CompletedAt == nil {
			continue
		}
		if latest == nil || s.CompletedAt.After(*latest.CompletedAt) {
			latest = s
		}
	}
	return latest, latest != nil
}

// Clone returns a copy of s with its own slices and timestamps.
func (s *Session) Clone() *Session {
	c := *s
	c.Changes.RequestedChanges = append([]string(nil), s.Changes.RequestedChanges...)
	c.Changes.ImplementedChanges = append([]string(nil), s.Changes.ImplementedChanges...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// IsClosed reports whether the session can no longer change.
func (s *Session) IsClosed() bool {
	return s.Status != StatusActive
}

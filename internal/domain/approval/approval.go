// Package approval defines domain types for workflow approval gates.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/devteam/internal/domain"
)

// Status represents the lifecycle state of an approval request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusTimeout   Status = "timeout"
	StatusEscalated Status = "escalated"
)

// IsTerminal reports whether no decision can be recorded for s anymore.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// FallbackAction is the policy applied when an approval times out.
type FallbackAction string

const (
	FallbackAutoApprove FallbackAction = "auto_approve"
	FallbackAutoReject  FallbackAction = "auto_reject"
	FallbackEscalate    FallbackAction = "escalate"
)

// Valid reports whether a is empty or a known fallback action.
func (a FallbackAction) Valid() bool {
	switch a {
	case "", FallbackAutoApprove, FallbackAutoReject, FallbackEscalate:
		return true
	}
	return false
}

// ApproverType is the role tag of whoever must decide on a request.
type ApproverType string

const (
	ApproverHumanReviewer      ApproverType = "human_reviewer"
	ApproverTechLead           ApproverType = "tech_lead"
	ApproverEngineeringManager ApproverType = "engineering_manager"
	ApproverBusinessAnalyst    ApproverType = "business_analyst"
	ApproverProjectManager     ApproverType = "project_manager"
	ApproverSeniorStakeholder  ApproverType = "senior_stakeholder"
)

// DecisionKind is the verdict on an approval request.
type DecisionKind string

const (
	DecisionApproved DecisionKind = "approved"
	DecisionRejected DecisionKind = "rejected"
)

// NextAction tells the calling workflow step how to proceed after a decision.
type NextAction string

const (
	NextContinue NextAction = "continue"
	NextIterate  NextAction = "iterate"
	NextStop     NextAction = "stop"
)

// ArtifactType classifies a reviewable artifact.
type ArtifactType string

const (
	ArtifactCode         ArtifactType = "code"
	ArtifactMockup       ArtifactType = "mockup"
	ArtifactDocument     ArtifactType = "document"
	ArtifactDesign       ArtifactType = "design"
	ArtifactArchitecture ArtifactType = "architecture"
)

// SystemResolver is the resolver identity recorded for sweep-driven decisions.
const SystemResolver = "system"

// Artifact is one reviewable output attached to a request.
type Artifact struct {
	ID      string       `json:"id"`
	Type    ArtifactType `json:"type"`
	Name    string       `json:"name"`
	Content string       `json:"content,omitempty"`
	URL     string       `json:"url,omitempty"`
}

// Criteria groups review criteria by dimension.
type Criteria struct {
	Technical []string `json:"technical,omitempty"`
	Business  []string `json:"business,omitempty"`
	Design    []string `json:"design,omitempty"`
	Security  []string `json:"security,omitempty"`
}

// Content is what the approver is asked to review.
type Content struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Artifacts   []Artifact     `json:"artifacts"`
	Criteria    Criteria       `json:"criteria"`
	Context     map[string]any `json:"context,omitempty"`
}

// Approver identifies a concrete approver and how to reach them.
type Approver struct {
	UserID       string `json:"user_id,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	SlackChannel string `json:"slack_channel,omitempty"`
	WebhookURL   string `json:"webhook_url,omitempty"`
}

// IsZero reports whether no contact field is set.
func (a Approver) IsZero() bool {
	return a == Approver{}
}

// Response is the recorded decision on a request.
type Response struct {
	Decision          DecisionKind `json:"decision"`
	Feedback          string       `json:"feedback,omitempty"`
	SuggestedChanges  []string     `json:"suggested_changes,omitempty"`
	IterationRequired bool         `json:"iteration_required"`
	ResolvedBy        string       `json:"resolved_by"`
	ResolvedAt        time.Time    `json:"resolved_at"`
}

// Request is one approval gate for a (workflow execution, step) pair.
type Request struct {
	ID                  string         `json:"id"`
	WorkflowExecutionID string         `json:"workflow_execution_id"`
	StepID              string         `json:"step_id"`
	StepName            string         `json:"step_name"`
	ApproverType        ApproverType   `json:"approver_type"`
	Status              Status         `json:"status"`
	Content             Content        `json:"content"`
	TimeoutAt           *time.Time     `json:"timeout_at,omitempty"`
	FallbackAction      FallbackAction `json:"fallback_action,omitempty"`
	Approver            *Approver      `json:"approver,omitempty"`
	Response            *Response      `json:"response,omitempty"`
	MaxIterations       int            `json:"max_iterations,omitempty"`
	Priority            string         `json:"priority,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// IsDue reports whether r is pending with a timeout at or before now.
func (r *Request) IsDue(now time.Time) bool {
	return r.Status == StatusPending && r.TimeoutAt != nil && !r.TimeoutAt.After(now)
}

// Resolve records a terminal decision on a pending request.
func (r *Request) Resolve(resp Response) error {
	if r.Status != StatusPending {
		return domain.ErrNotPending
	}
	switch resp.Decision {
	case DecisionApproved:
		r.Status = StatusApproved
	case DecisionRejected:
		r.Status = StatusRejected
	default:
		return fmt.Errorf("decision %q: %w", resp.Decision, domain.ErrValidation)
	}
	r.Response = &resp
	r.UpdatedAt = resp.ResolvedAt
	return nil
}

// Config is the approval requirement declared on a workflow step.
type Config struct {
	ApproverType   ApproverType   `json:"approver_type"`
	TimeoutMinutes *int           `json:"timeout_minutes,omitempty"`
	FallbackAction FallbackAction `json:"fallback_action,omitempty"`
	MaxIterations  int            `json:"max_iterations,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Title          string         `json:"title,omitempty"`
	Description    string         `json:"description,omitempty"`
	Criteria       Criteria       `json:"criteria"`
}

// CreateRequest holds the fields for opening a new approval gate.
type CreateRequest struct {
	WorkflowExecutionID string         `json:"workflow_execution_id"`
	StepID              string         `json:"step_id"`
	StepName            string         `json:"step_name"`
	Config              Config         `json:"config"`
	Artifacts           []Artifact     `json:"artifacts"`
	Context             map[string]any `json:"context,omitempty"`
	Approver            *Approver      `json:"approver,omitempty"`
}

var (
	ErrExecutionRequired    = errors.New("workflow_execution_id is required")
	ErrStepRequired         = errors.New("step_id is required")
	ErrApproverTypeRequired = errors.New("config.approver_type is required")
	ErrInvalidFallback      = errors.New("invalid fallback action")
	ErrNegativeTimeout      = errors.New("timeout_minutes must be >= 0")
)

// Validate checks the create request for correctness.
func (c *CreateRequest) Validate() error {
	if c.WorkflowExecutionID == "" {
		return ErrExecutionRequired
	}
	if c.StepID == "" {
		return ErrStepRequired
	}
	if c.Config.ApproverType == "" {
		return ErrApproverTypeRequired
	}
	if !c.Config.FallbackAction.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFallback, c.Config.FallbackAction)
	}
	if c.Config.TimeoutMinutes != nil && *c.Config.TimeoutMinutes < 0 {
		return ErrNegativeTimeout
	}
	return nil
}

// Decision is a human verdict submitted for a request.
type Decision struct {
	Decision          DecisionKind `json:"decision"`
	Feedback          string       `json:"feedback"`
	SuggestedChanges  []string     `json:"suggested_changes,omitempty"`
	IterationRequired bool         `json:"iteration_required"`
	ResolvedBy        string       `json:"resolved_by"`
}

// Validate checks the decision for correctness.
func (d *Decision) Validate() error {
	if d.Decision != DecisionApproved && d.Decision != DecisionRejected {
		return fmt.Errorf("decision must be approved or rejected, got %q", d.Decision)
	}
	if d.ResolvedBy == "" {
		return errors.New("resolved_by is required")
	}
	return nil
}

// ProcessResult is the outcome of submitting a decision.
type ProcessResult struct {
	Accepted           bool       `json:"accepted"`
	NextAction         NextAction `json:"next_action,omitempty"`
	IterationSessionID string     `json:"iteration_session_id,omitempty"`
	Reason             string     `json:"reason,omitempty"`
}

// Clone returns a copy of r that shares no mutable state with it.
// Context values are copied one level deep.
func (r *Request) Clone() *Request {
	c := *r
	c.Content.Artifacts = append([]Artifact(nil), r.Content.Artifacts...)
	c.Content.Criteria = Criteria{
		Technical: append([]string(nil), r.Content.Criteria.Technical...),
		Business:  append([]string(nil), r.Content.Criteria.Business...),
		Design:    append([]string(nil), r.Content.Criteria.Design...),
		Security:  append([]string(nil), r.Content.Criteria.Security...),
	}
	if r.Content.Context != nil {
		c.Content.Context = make(map[string]any, len(r.Content.Context))
		for k, v := range r.Content.Context {
			c.Content.Context[k] = v
		}
	}
	if r.TimeoutAt != nil {
		t := *r.TimeoutAt
		c.TimeoutAt = &t
	}
	if r.Approver != nil {
		a := *r.Approver
		c.Approver = &a
	}
	if r.Response != nil {
		resp := *r.Response
		resp.SuggestedChanges = append([]string(nil), r.Response.SuggestedChanges...)
		c.Response = &resp
	}
	return &c
}

package messagequeue

// ApprovalEventPayload is the schema for devteam.events.approval.* messages.
type ApprovalEventPayload struct {
	ApprovalID          string `json:"approval_id"`
	WorkflowExecutionID string `json:"workflow_execution_id"`
	StepID              string `json:"step_id"`
	ApproverType        string `json:"approver_type"`
	Status              string `json:"status"`
	ResolvedBy          string `json:"resolved_by,omitempty"`
}

// IterationEventPayload is the schema for devteam.events.iteration.* messages.
type IterationEventPayload struct {
	IterationID         string `json:"iteration_id"`
	WorkflowExecutionID string `json:"workflow_execution_id"`
	StepID              string `json:"step_id"`
	IterationNumber     int    `json:"iteration_number"`
	Status              string `json:"status"`
}

// CollabSessionPayload is the schema for collab.sessions.created messages.
type CollabSessionPayload struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Kind      string `json:"kind"`
}

// CollabMessagePayload is the schema for collab.sessions.messages.{id} messages.
type CollabMessagePayload struct {
	SessionID string            `json:"session_id"`
	Text      string            `json:"text"`
	Hints     map[string]string `json:"hints,omitempty"`
}

// ApprovalRespondPayload is the schema for devteam.commands.approval.respond.
type ApprovalRespondPayload struct {
	ApprovalID        string   `json:"approval_id"`
	Decision          string   `json:"decision"`
	Feedback          string   `json:"feedback"`
	SuggestedChanges  []string `json:"suggested_changes,omitempty"`
	IterationRequired bool     `json:"iteration_required"`
	ResolvedBy        string   `json:"resolved_by"`
}

// IterationCompletePayload is the schema for devteam.commands.iteration.complete.
type IterationCompletePayload struct {
	IterationID string `json:"iteration_id"`
	Success     bool   `json:"success"`
}

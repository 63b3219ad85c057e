package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch {
	case subject == SubjectApprovalRespond:
		target = &ApprovalRespondPayload{}
	case subject == SubjectIterationComplete:
		target = &IterationCompletePayload{}
	case strings.HasPrefix(subject, SubjectEventPrefix+".approval."):
		target = &ApprovalEventPayload{}
	case strings.HasPrefix(subject, SubjectEventPrefix+".iteration."):
		target = &IterationEventPayload{}
	case subject == SubjectCollabSessionCreated:
		target = &CollabSessionPayload{}
	case strings.HasPrefix(subject, SubjectCollabMessages+"."):
		target = &CollabMessagePayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}

	switch p := target.(type) {
	case *ApprovalRespondPayload:
		if p.ApprovalID == "" {
			return fmt.Errorf("schema validation failed for %s: approval_id is required", subject)
		}
	case *IterationCompletePayload:
		if p.IterationID == "" {
			return fmt.Errorf("schema validation failed for %s: iteration_id is required", subject)
		}
	}
	return nil
}

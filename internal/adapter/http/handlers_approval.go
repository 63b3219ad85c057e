package http

import (
	"net/http"

	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/logger"
)

// CreateApproval handles POST /api/v1/approvals
func (h *Handlers) CreateApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[approval.CreateRequest](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	ctx := logger.WithExecutionID(r.Context(), req.WorkflowExecutionID)

	id, err := h.Approvals.CreateRequest(ctx, req)
	if err != nil {
		writeDomainError(w, err, "approval request not created")
		return
	}
	created, err := h.Approvals.GetStatus(ctx, id)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetApproval handles GET /api/v1/approvals/{id}
func (h *Handlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	req, err := h.Approvals.GetStatus(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RespondApproval handles POST /api/v1/approvals/{id}/respond
//
// A decision on a request that is unknown or already resolved is answered
// with 200 and accepted=false; only malformed decisions are errors.
func (h *Handlers) RespondApproval(w http.ResponseWriter, r *http.Request) {
	d, ok := readJSON[approval.Decision](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	res, err := h.Approvals.ProcessResponse(r.Context(), urlParam(r, "id"), d)
	if err != nil {
		writeDomainError(w, err, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListPendingForExecution handles GET /api/v1/executions/{exec}/approvals/pending
func (h *Handlers) ListPendingForExecution(w http.ResponseWriter, r *http.Request) {
	list, err := h.Approvals.ListPending(r.Context(), urlParam(r, "exec"))
	if err != nil {
		writeDomainError(w, err, "approvals not found")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// ListPendingForApprover handles GET /api/v1/approvers/{type}/approvals/pending
func (h *Handlers) ListPendingForApprover(w http.ResponseWriter, r *http.Request) {
	list, err := h.Approvals.ListPendingForApprover(r.Context(), approval.ApproverType(urlParam(r, "type")))
	if err != nil {
		writeDomainError(w, err, "approvals not found")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// ApprovalDashboard handles GET /api/v1/approvals/dashboard
func (h *Handlers) ApprovalDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Approvals.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, err, "dashboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SweepApprovals handles POST /api/v1/approvals/sweep and runs one sweep pass.
func (h *Handlers) SweepApprovals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Escalation.Sweep(r.Context()))
}

// GetNotification handles GET /api/v1/notifications/{id}
func (h *Handlers) GetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notifications.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type workflowCompletedRequest struct {
	RecipientType string                 `json:"recipient_type"`
	Recipient     notification.Recipient `json:"recipient"`
	Summary       string                 `json:"summary"`
}

// NotifyWorkflowCompleted handles POST /api/v1/executions/{exec}/completed
func (h *Handlers) NotifyWorkflowCompleted(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[workflowCompletedRequest](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	id, err := h.Notifications.NotifyWorkflowCompleted(r.Context(), urlParam(r, "exec"), req.RecipientType, req.Recipient, req.Summary)
	if err != nil {
		writeDomainError(w, err, "notification not sent")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"notification_id": id})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

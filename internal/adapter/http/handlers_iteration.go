package http

import (
	"net/http"

	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/logger"
)

// StartIteration handles POST /api/v1/iterations
func (h *Handlers) StartIteration(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[iteration.StartRequest](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	ctx := logger.WithExecutionID(r.Context(), req.WorkflowExecutionID)

	id, err := h.Iterations.Start(ctx, req)
	if err != nil {
		writeDomainError(w, err, "iteration not started")
		return
	}
	sess, err := h.Iterations.Get(ctx, id)
	if err != nil {
		writeDomainError(w, err, "iteration session not found")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GetIteration handles GET /api/v1/iterations/{id}
func (h *Handlers) GetIteration(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Iterations.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "iteration session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ListIterations handles GET /api/v1/executions/{exec}/steps/{step}/iterations
func (h *Handlers) ListIterations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Iterations.ListForStep(r.Context(), urlParam(r, "exec"), urlParam(r, "step"))
	if err != nil {
		writeDomainError(w, err, "iterations not found")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type updateIterationRequest struct {
	ImplementedChanges []string `json:"implemented_changes"`
	NewVersion         any      `json:"new_version"`
}

// UpdateIteration handles POST /api/v1/iterations/{id}/update
//
// updated=false means the session was no longer active.
func (h *Handlers) UpdateIteration(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[updateIterationRequest](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	updated, err := h.Iterations.Update(r.Context(), urlParam(r, "id"), req.ImplementedChanges, req.NewVersion)
	if err != nil {
		writeDomainError(w, err, "iteration session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}

type completeIterationRequest struct {
	Success bool `json:"success"`
}

// CompleteIteration handles POST /api/v1/iterations/{id}/complete
func (h *Handlers) CompleteIteration(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[completeIterationRequest](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	id := urlParam(r, "id")
	if err := h.Iterations.Complete(r.Context(), id, req.Success); err != nil {
		writeDomainError(w, err, "iteration session not found")
		return
	}
	sess, err := h.Iterations.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "iteration session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

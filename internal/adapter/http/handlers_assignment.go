package http

import (
	"net/http"

	"github.com/Strob0t/devteam/internal/domain/assignment"
)

// ListAssignments handles GET /api/v1/assignments
func (h *Handlers) ListAssignments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Assignments.List()))
}

// GetAssignment handles GET /api/v1/assignments/{agent}
//
// Unknown agent types get the default assignment, never a 404.
func (h *Handlers) GetAssignment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Assignments.ForAgent(urlParam(r, "agent")))
}

// GetTaskTarget handles GET /api/v1/assignments/{agent}/tasks/{task}
func (h *Handlers) GetTaskTarget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Assignments.OptimalProviderForTask(urlParam(r, "agent"), urlParam(r, "task")))
}

// UpdateAssignment handles PUT /api/v1/assignments/{agent}
func (h *Handlers) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	a, ok := readJSON[assignment.Assignment](w, r, h.Limits.MaxBodyBytes)
	if !ok {
		return
	}
	agent := urlParam(r, "agent")
	if err := h.Assignments.Update(r.Context(), agent, a); err != nil {
		writeDomainError(w, err, "assignment not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Assignments.ForAgent(agent))
}

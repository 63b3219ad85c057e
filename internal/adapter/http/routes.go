package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteMiddleware holds optional per-route middleware. Nil entries are skipped.
type RouteMiddleware struct {
	// Idempotency guards mutating approval and iteration routes.
	Idempotency func(http.Handler) http.Handler
	// ChatRateLimit guards the chat route.
	ChatRateLimit func(http.Handler) http.Handler
}

func (m RouteMiddleware) idempotent() []func(http.Handler) http.Handler {
	if m.Idempotency == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{m.Idempotency}
}

func (m RouteMiddleware) chat() []func(http.Handler) http.Handler {
	if m.ChatRateLimit == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{m.ChatRateLimit}
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, mw RouteMiddleware) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Approvals
		r.With(mw.idempotent()...).Post("/approvals", h.CreateApproval)
		r.Get("/approvals/dashboard", h.ApprovalDashboard)
		r.Post("/approvals/sweep", h.SweepApprovals)
		r.Get("/approvals/{id}", h.GetApproval)
		r.With(mw.idempotent()...).Post("/approvals/{id}/respond", h.RespondApproval)
		r.Get("/executions/{exec}/approvals/pending", h.ListPendingForExecution)
		r.Get("/approvers/{type}/approvals/pending", h.ListPendingForApprover)

		// Iterations
		r.With(mw.idempotent()...).Post("/iterations", h.StartIteration)
		r.Get("/iterations/{id}", h.GetIteration)
		r.Post("/iterations/{id}/update", h.UpdateIteration)
		r.Post("/iterations/{id}/complete", h.CompleteIteration)
		r.Get("/executions/{exec}/steps/{step}/iterations", h.ListIterations)

		// Notifications
		r.Get("/notifications/{id}", h.GetNotification)
		r.With(mw.idempotent()...).Post("/executions/{exec}/completed", h.NotifyWorkflowCompleted)

		// Agent model assignments
		r.Get("/assignments", h.ListAssignments)
		r.Get("/assignments/{agent}", h.GetAssignment)
		r.Put("/assignments/{agent}", h.UpdateAssignment)
		r.Get("/assignments/{agent}/tasks/{task}", h.GetTaskTarget)

		// Chat routing
		r.With(mw.chat()...).Post("/chat", h.Chat)
	})
}

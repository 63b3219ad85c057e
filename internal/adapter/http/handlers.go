package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/devteam/internal/service"
)

// HealthCheck pings one dependency for the /health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Limits bounds request handling.
type Limits struct {
	MaxBodyBytes int64
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Approvals     *service.ApprovalService
	Iterations    *service.IterationService
	Escalation    *service.EscalationService
	Notifications *service.NotificationDispatcher
	Assignments   *service.AssignmentRegistry
	Router        *service.ChatRouter
	HealthChecks  []HealthCheck
	Limits        Limits
}

const healthTimeout = 3 * time.Second

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. Any failing check turns the answer into a 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := healthStatus{Status: "ok", Checks: make(map[string]string, len(h.HealthChecks))}
	code := http.StatusOK
	for _, hc := range h.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			status.Checks[hc.Name] = err.Error()
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[hc.Name] = "ok"
	}
	writeJSON(w, code, status)
}

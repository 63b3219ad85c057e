package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/devteam/internal/adapter/memory"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/assignment"
	"github.com/Strob0t/devteam/internal/domain/chat"
	"github.com/Strob0t/devteam/internal/domain/iteration"
	"github.com/Strob0t/devteam/internal/middleware"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/llm"
	"github.com/Strob0t/devteam/internal/scheduler"
	"github.com/Strob0t/devteam/internal/service"
)

// --- fakes ---

type fakeProvider struct {
	id  string
	err error
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) Chat(_ context.Context, model string, _ chat.Request) (*chat.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &chat.Response{Content: "answer from " + p.id, Model: model}, nil
}

type fakeCatalog struct {
	providers map[string]*fakeProvider
}

func newFakeCatalog(ids ...string) *fakeCatalog {
	c := &fakeCatalog{providers: make(map[string]*fakeProvider)}
	for _, id := range ids {
		c.providers[id] = &fakeProvider{id: id}
	}
	return c
}

func (c *fakeCatalog) GetProvider(_ context.Context, id string) (llm.Provider, error) {
	p, ok := c.providers[id]
	if !ok {
		return nil, llm.ErrProviderNotFound
	}
	return p, nil
}

func (c *fakeCatalog) ListAvailableModels(context.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// --- harness ---

type testAPI struct {
	srv     *httptest.Server
	catalog *fakeCatalog
}

func newTestAPI(t *testing.T, checks ...HealthCheck) *testAPI {
	t.Helper()

	cfg := config.Defaults()
	store := memory.NewStore()
	sched := scheduler.New(context.Background(), slog.Default())
	t.Cleanup(sched.Stop)

	catalog := newFakeCatalog("azure-openai", "anthropic-claude", "deepseek", "groq")
	contacts := service.ContactsFromConfig(&cfg)
	hub := broadcast.Nop{}

	notify := service.NewNotificationDispatcher(store, nil, sched, hub, cfg.Notification)
	iterations := service.NewIterationService(store, store, memory.NewSessions(), hub, cfg.Approval.DefaultMaxIterations)
	approvals := service.NewApprovalService(store, iterations, notify, hub, contacts, cfg.Approval)
	escalation := service.NewEscalationService(store, notify, hub, sched, contacts, cfg.Approval, cfg.Notification.EscalationMaxAttempts)
	registry := service.NewAssignmentRegistry(catalog)
	registry.Initialize()

	h := &Handlers{
		Approvals:     approvals,
		Iterations:    iterations,
		Escalation:    escalation,
		Notifications: notify,
		Assignments:   registry,
		Router:        service.NewChatRouter(registry, catalog, assignment.Target{}, 0),
		HealthChecks:  checks,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger)
	MountRoutes(r, h, RouteMiddleware{
		Idempotency:   middleware.Idempotency(&mapCache{m: make(map[string][]byte)}, time.Hour),
		ChatRateLimit: middleware.NewRateLimiter(1, 2, middleware.ByHeader(HeaderAgentType)).Handler,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, catalog: catalog}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, a.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, b)
	}
}

func gate() approval.CreateRequest {
	timeout := 60
	return approval.CreateRequest{
		WorkflowExecutionID: "exec-1",
		StepID:              "design",
		StepName:            "UI design",
		Config: approval.Config{
			ApproverType:   approval.ApproverTechLead,
			TimeoutMinutes: &timeout,
			FallbackAction: approval.FallbackEscalate,
			MaxIterations:  2,
		},
		Artifacts: []approval.Artifact{{ID: "a1", Type: approval.ArtifactMockup, Name: "landing.png"}},
	}
}

// --- tests ---

func TestApprovalFlow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodPost, "/api/v1/approvals", gate())
	expectStatus(t, resp, http.StatusCreated)
	created := decode[approval.Request](t, resp)
	if created.ID == "" || created.Status != approval.StatusPending || created.TimeoutAt == nil {
		t.Fatalf("unexpected request %+v", created)
	}

	resp = api.do(t, http.MethodGet, "/api/v1/executions/exec-1/approvals/pending", nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[[]approval.Request](t, resp); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected pending list %+v", list)
	}

	resp = api.do(t, http.MethodGet, "/api/v1/approvers/tech_lead/approvals/pending", nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[[]approval.Request](t, resp); len(list) != 1 {
		t.Fatalf("expected one pending request for tech_lead, got %d", len(list))
	}

	decision := approval.Decision{Decision: approval.DecisionApproved, ResolvedBy: "alice"}
	resp = api.do(t, http.MethodPost, "/api/v1/approvals/"+created.ID+"/respond", decision)
	expectStatus(t, resp, http.StatusOK)
	if res := decode[approval.ProcessResult](t, resp); !res.Accepted || res.NextAction != approval.NextContinue {
		t.Fatalf("unexpected result %+v", res)
	}

	// A second decision is answered but not accepted.
	resp = api.do(t, http.MethodPost, "/api/v1/approvals/"+created.ID+"/respond", decision)
	expectStatus(t, resp, http.StatusOK)
	if res := decode[approval.ProcessResult](t, resp); res.Accepted {
		t.Fatal("a resolved request must not accept another decision")
	}

	resp = api.do(t, http.MethodGet, "/api/v1/approvals/"+created.ID, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[approval.Request](t, resp); got.Status != approval.StatusApproved || got.Response.ResolvedBy != "alice" {
		t.Fatalf("unexpected request %+v", got)
	}

	resp = api.do(t, http.MethodGet, "/api/v1/approvals/dashboard", nil)
	expectStatus(t, resp, http.StatusOK)
	if d := decode[approval.Dashboard](t, resp); d.PendingCount != 0 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestRejectionStartsIteration(t *testing.T) {
	api := newTestAPI(t)

	created := decode[approval.Request](t, api.do(t, http.MethodPost, "/api/v1/approvals", gate()))
	resp := api.do(t, http.MethodPost, "/api/v1/approvals/"+created.ID+"/respond", approval.Decision{
		Decision:          approval.DecisionRejected,
		Feedback:          "header is off",
		SuggestedChanges:  []string{"fix header"},
		IterationRequired: true,
		ResolvedBy:        "alice",
	})
	expectStatus(t, resp, http.StatusOK)
	res := decode[approval.ProcessResult](t, resp)
	if res.NextAction != approval.NextIterate || res.IterationSessionID == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	resp = api.do(t, http.MethodGet, "/api/v1/iterations/"+res.IterationSessionID, nil)
	expectStatus(t, resp, http.StatusOK)
	sess := decode[iteration.Session](t, resp)
	if sess.IterationNumber != 1 || sess.MaxIterations != 2 || sess.Trigger != iteration.TriggerApprovalRejected {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestApprovalErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown approval", http.MethodGet, "/api/v1/approvals/missing", nil, http.StatusNotFound},
		{"missing step", http.MethodPost, "/api/v1/approvals", approval.CreateRequest{WorkflowExecutionID: "exec-1"}, http.StatusUnprocessableEntity},
		{"bad decision", http.MethodPost, "/api/v1/approvals/missing/respond", approval.Decision{Decision: "maybe", ResolvedBy: "alice"}, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/v1/approvals", "not an object", http.StatusBadRequest},
		{"unknown notification", http.MethodGet, "/api/v1/notifications/missing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, api.do(t, tt.method, tt.path, tt.body), tt.want)
		})
	}

	// Decisions on unknown ids are not errors.
	resp := api.do(t, http.MethodPost, "/api/v1/approvals/missing/respond", approval.Decision{Decision: approval.DecisionApproved, ResolvedBy: "alice"})
	expectStatus(t, resp, http.StatusOK)
	if res := decode[approval.ProcessResult](t, resp); res.Accepted {
		t.Fatal("unknown request must not be accepted")
	}
}

func TestRespondIsIdempotent(t *testing.T) {
	api := newTestAPI(t)
	created := decode[approval.Request](t, api.do(t, http.MethodPost, "/api/v1/approvals", gate()))

	decision := approval.Decision{Decision: approval.DecisionApproved, ResolvedBy: "alice"}
	path := "/api/v1/approvals/" + created.ID + "/respond"

	first := api.do(t, http.MethodPost, path, decision, "Idempotency-Key", "k-1")
	expectStatus(t, first, http.StatusOK)
	if res := decode[approval.ProcessResult](t, first); !res.Accepted {
		t.Fatal("first decision must be accepted")
	}

	// A retried delivery replays the original answer instead of reporting a conflict.
	second := api.do(t, http.MethodPost, path, decision, "Idempotency-Key", "k-1")
	expectStatus(t, second, http.StatusOK)
	if second.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replayed response")
	}
	if res := decode[approval.ProcessResult](t, second); !res.Accepted {
		t.Fatal("replayed response must match the original")
	}
}

func TestSweepEndpoint(t *testing.T) {
	api := newTestAPI(t)

	req := gate()
	zero := 0
	req.Config.TimeoutMinutes = &zero
	req.Config.FallbackAction = approval.FallbackAutoReject
	created := decode[approval.Request](t, api.do(t, http.MethodPost, "/api/v1/approvals", req))

	resp := api.do(t, http.MethodPost, "/api/v1/approvals/sweep", nil)
	expectStatus(t, resp, http.StatusOK)
	if res := decode[service.SweepResult](t, resp); res.Rejected != 1 {
		t.Fatalf("unexpected sweep result %+v", res)
	}

	got := decode[approval.Request](t, api.do(t, http.MethodGet, "/api/v1/approvals/"+created.ID, nil))
	if got.Status != approval.StatusRejected || got.Response.ResolvedBy != approval.SystemResolver {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestIterationEndpoints(t *testing.T) {
	api := newTestAPI(t)

	start := iteration.StartRequest{
		WorkflowExecutionID: "exec-1",
		StepID:              "build",
		Trigger:             iteration.TriggerValidationFailed,
		RequestedChanges:    []string{"fix lint"},
		MaxIterations:       2,
	}

	var first iteration.Session
	for i := 1; i <= 2; i++ {
		resp := api.do(t, http.MethodPost, "/api/v1/iterations", start)
		expectStatus(t, resp, http.StatusCreated)
		sess := decode[iteration.Session](t, resp)
		if sess.IterationNumber != i {
			t.Fatalf("iteration %d numbered %d", i, sess.IterationNumber)
		}
		if i == 1 {
			first = sess
		}
	}
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/iterations", start), http.StatusConflict)

	resp := api.do(t, http.MethodGet, "/api/v1/executions/exec-1/steps/build/iterations", nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[[]iteration.Session](t, resp); len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}

	resp = api.do(t, http.MethodPost, "/api/v1/iterations/"+first.ID+"/update", map[string]any{
		"implemented_changes": []string{"fixed lint"},
		"new_version":         "v2",
	})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]bool](t, resp); !got["updated"] {
		t.Fatal("expected updated=true")
	}

	resp = api.do(t, http.MethodPost, "/api/v1/iterations/"+first.ID+"/update", map[string]any{"implemented_changes": []string{"again"}})
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]bool](t, resp); got["updated"] {
		t.Fatal("closed session must not be updated")
	}

	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/iterations/"+first.ID+"/complete", map[string]bool{"success": true}), http.StatusConflict)
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/iterations/missing/update", map[string]any{}), http.StatusNotFound)

	start.Trigger = "whim"
	start.StepID = "deploy"
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/iterations", start), http.StatusUnprocessableEntity)
}

func TestAssignmentEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/api/v1/assignments", nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[[]assignment.Assignment](t, resp); len(list) == 0 {
		t.Fatal("expected curated assignments")
	}

	resp = api.do(t, http.MethodGet, "/api/v1/assignments/data-scientist", nil)
	expectStatus(t, resp, http.StatusOK)
	if a := decode[assignment.Assignment](t, resp); a.PrimaryProvider != assignment.DefaultProvider {
		t.Fatalf("unknown agents get the default, got %+v", a)
	}

	resp = api.do(t, http.MethodPut, "/api/v1/assignments/architect", assignment.Assignment{PrimaryProvider: "acme", PrimaryModel: "x"})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = api.do(t, http.MethodPut, "/api/v1/assignments/architect", assignment.Assignment{
		PrimaryProvider:   "groq",
		PrimaryModel:      "llama-3.1-70b",
		FallbackProviders: []assignment.Fallback{{Provider: "deepseek", Model: "deepseek-coder-v3", Priority: 1}},
	})
	expectStatus(t, resp, http.StatusOK)
	if a := decode[assignment.Assignment](t, resp); a.AgentType != "architect" || a.PrimaryProvider != "groq" {
		t.Fatalf("unexpected assignment %+v", a)
	}

	resp = api.do(t, http.MethodGet, "/api/v1/assignments/architect/tasks/anything", nil)
	expectStatus(t, resp, http.StatusOK)
	if target := decode[assignment.Target](t, resp); target.Provider != "groq" {
		t.Fatalf("unexpected target %+v", target)
	}
}

func TestChatEndpoint(t *testing.T) {
	api := newTestAPI(t)
	msgs := []chat.Message{{Role: "user", Content: "write tests"}}

	resp := api.do(t, http.MethodPost, "/api/v1/chat", chat.Request{Messages: msgs}, HeaderAgentType, assignment.AgentQAEngineer)
	expectStatus(t, resp, http.StatusOK)
	out := decode[chat.Response](t, resp)
	if out.Routing.ProviderID != "deepseek" || out.Routing.AgentType != assignment.AgentQAEngineer {
		t.Fatalf("unexpected routing %+v", out.Routing)
	}

	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/chat", chat.Request{}, HeaderAgentType, "architect"), http.StatusUnprocessableEntity)

	for _, p := range api.catalog.providers {
		p.err = errors.New("upstream down")
	}
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/chat", chat.Request{Messages: msgs}, HeaderAgentType, "devops-engineer"), http.StatusBadGateway)
}

func TestChatRateLimitedPerAgent(t *testing.T) {
	api := newTestAPI(t)
	req := chat.Request{Messages: []chat.Message{{Role: "user", Content: "hi"}}}

	for range 2 {
		expectStatus(t, api.do(t, http.MethodPost, "/api/v1/chat", req, HeaderAgentType, "architect"), http.StatusOK)
	}
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/chat", req, HeaderAgentType, "architect"), http.StatusTooManyRequests)
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/chat", req, HeaderAgentType, "qa-engineer"), http.StatusOK)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		api := newTestAPI(t, HealthCheck{Name: "store", Check: func(context.Context) error { return nil }})
		resp := api.do(t, http.MethodGet, "/health", nil)
		expectStatus(t, resp, http.StatusOK)
		if got := decode[healthStatus](t, resp); got.Status != "ok" || got.Checks["store"] != "ok" {
			t.Fatalf("unexpected health %+v", got)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		api := newTestAPI(t,
			HealthCheck{Name: "store", Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "nats", Check: func(context.Context) error { return errors.New("disconnected") }},
		)
		resp := api.do(t, http.MethodGet, "/health", nil)
		expectStatus(t, resp, http.StatusServiceUnavailable)
		if got := decode[healthStatus](t, resp); got.Status != "degraded" || got.Checks["nats"] != "disconnected" {
			t.Fatalf("unexpected health %+v", got)
		}
	})
}

func TestRequestBodyLimit(t *testing.T) {
	h := &Handlers{Limits: Limits{MaxBodyBytes: 16}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(bytes.Repeat([]byte(" "), 64)))
	h.Chat(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d, want 413", rec.Code)
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/assignment"
	"github.com/Strob0t/devteam/internal/domain/chat"
	"github.com/Strob0t/devteam/internal/port/llm"
)

// defaultMaxAttempts is the attempt number at which a fallback chain aborts.
const defaultMaxAttempts = 4

// ChatRouter picks a provider and model for a chat request and walks the
// agent's fallback chain, one provider at a time, until a call succeeds or
// the attempt cap is reached.
type ChatRouter struct {
	registry    *AssignmentRegistry
	catalog     llm.Catalog
	fallback    assignment.Target
	maxAttempts int
	metrics     *cfotel.Metrics
}

// NewChatRouter creates a ChatRouter. defaultTarget is used when a request
// names neither an agent nor a model, and as the only fallback for requests
// without an agent. maxAttempts below 2 falls back to 4.
func NewChatRouter(registry *AssignmentRegistry, catalog llm.Catalog, defaultTarget assignment.Target, maxAttempts int) *ChatRouter {
	if defaultTarget.Provider == "" || defaultTarget.Model == "" {
		defaultTarget = assignment.Target{Provider: assignment.DefaultProvider, Model: assignment.DefaultModel}
	}
	if maxAttempts < 2 {
		maxAttempts = defaultMaxAttempts
	}
	return &ChatRouter{
		registry:    registry,
		catalog:     catalog,
		fallback:    defaultTarget,
		maxAttempts: maxAttempts,
	}
}

// SetMetrics attaches metric instruments.
func (r *ChatRouter) SetMetrics(m *cfotel.Metrics) { r.metrics = m }

// Chat routes one request. The response carries the provider, model and
// attempt number that produced it.
func (r *ChatRouter) Chat(ctx context.Context, req chat.Request) (*chat.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	target := r.resolve(ctx, req)
	return r.executeWithFallback(ctx, target.Provider, target.Model, req, req.AgentType, 1)
}

// ChatForAgent routes messages on behalf of an agent.
func (r *ChatRouter) ChatForAgent(ctx context.Context, agentType string, messages []chat.Message, opts chat.Options) (*chat.Response, error) {
	return r.Chat(ctx, chat.Request{
		AgentType: agentType,
		Messages:  messages,
		Options:   opts,
	})
}

// resolve picks the first target: agent assignment, else the provider
// serving the requested model, else the default.
func (r *ChatRouter) resolve(ctx context.Context, req chat.Request) assignment.Target {
	if req.AgentType != "" {
		return r.registry.OptimalProviderForTask(req.AgentType, req.TaskType)
	}
	if req.Model != "" {
		models, err := r.catalog.ListAvailableModels(ctx)
		if err != nil {
			slog.Warn("chat router: model catalog unavailable", "model", req.Model, "error", err)
		}
		for _, m := range models {
			if m.ID == req.Model {
				return assignment.Target{Provider: m.Provider, Model: m.ID}
			}
		}
		return assignment.Target{Provider: r.fallback.Provider, Model: req.Model}
	}
	return r.fallback
}

func (r *ChatRouter) executeWithFallback(ctx context.Context, providerID, model string, req chat.Request, agentType string, attempt int) (*chat.Response, error) {
	resp, err := r.call(ctx, providerID, model, req, agentType, attempt)
	if err != nil {
		slog.Warn("chat provider attempt failed",
			"provider", providerID,
			"model", model,
			"agent_type", agentType,
			"attempt", attempt,
			"error", err,
		)
		return r.handleFallback(ctx, req, agentType, attempt, err)
	}
	resp.Routing = chat.Routing{
		ProviderID: providerID,
		Model:      model,
		Attempt:    attempt,
		AgentType:  agentType,
	}
	return resp, nil
}

// call performs one traced provider call.
func (r *ChatRouter) call(ctx context.Context, providerID, model string, req chat.Request, agentType string, attempt int) (*chat.Response, error) {
	ctx, span := cfotel.StartRouterAttemptSpan(ctx, providerID, model, agentType, attempt)
	defer span.End()
	start := time.Now()

	resp, err := r.doCall(ctx, providerID, model, req)
	r.metrics.RouterAttempt(ctx, providerID, err == nil, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
	}
	return resp, err
}

func (r *ChatRouter) doCall(ctx context.Context, providerID, model string, req chat.Request) (*chat.Response, error) {
	provider, err := r.catalog.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("lookup provider %s: %w", providerID, err)
	}
	req.Model = model
	resp, err := provider.Chat(ctx, model, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("provider %s returned no response", providerID)
	}
	return resp, nil
}

// handleFallback chooses the next target after attempt failed. Once the
// chain is exhausted the last fallback is retried until the attempt cap.
func (r *ChatRouter) handleFallback(ctx context.Context, req chat.Request, agentType string, attempt int, lastErr error) (*chat.Response, error) {
	if attempt >= r.maxAttempts {
		r.metrics.RouterExhaustedChain(ctx, agentType)
		return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrAllProvidersFailed, attempt, lastErr)
	}
	if agentType == "" {
		return r.executeWithFallback(ctx, r.fallback.Provider, r.fallback.Model, req, agentType, attempt+1)
	}

	fallbacks := r.registry.FallbacksForAgent(agentType)
	if len(fallbacks) == 0 {
		return nil, fmt.Errorf("agent %s: %w", agentType, domain.ErrNoFallbackProviders)
	}
	idx := min(attempt-1, len(fallbacks)-1)
	next := fallbacks[idx]
	return r.executeWithFallback(ctx, next.Provider, next.Model, req, agentType, attempt+1)
}

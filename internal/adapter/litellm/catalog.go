package litellm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/devteam/internal/domain/chat"
	"github.com/Strob0t/devteam/internal/port/cache"
	"github.com/Strob0t/devteam/internal/port/llm"
)

const modelsCacheKey = "litellm.models"

var (
	_ llm.Catalog  = (*Catalog)(nil)
	_ llm.Provider = (*Provider)(nil)
)

// Catalog exposes the providers configured behind the proxy. The model list
// is cached through the cache port; concurrent misses share one fetch.
type Catalog struct {
	client    *Client
	providers map[string]*Provider
	cache     cache.Cache
	ttl       time.Duration
	group     singleflight.Group
}

// NewCatalog creates a catalog serving providerIDs. A nil cache disables
// model list caching.
func NewCatalog(client *Client, providerIDs []string, c cache.Cache, ttl time.Duration) *Catalog {
	providers := make(map[string]*Provider, len(providerIDs))
	for _, id := range providerIDs {
		if id = strings.TrimSpace(id); id != "" {
			providers[id] = &Provider{id: id, client: client}
		}
	}
	return &Catalog{
		client:    client,
		providers: providers,
		cache:     c,
		ttl:       ttl,
	}
}

// GetProvider returns the handle for providerID.
func (c *Catalog) GetProvider(_ context.Context, providerID string) (llm.Provider, error) {
	p, ok := c.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", llm.ErrProviderNotFound, providerID)
	}
	return p, nil
}

// ProviderIDs returns the configured provider ids in sorted order.
func (c *Catalog) ProviderIDs() []string {
	ids := make([]string, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListAvailableModels returns the models of configured providers.
func (c *Catalog) ListAvailableModels(ctx context.Context) ([]llm.ModelInfo, error) {
	if c.cache != nil {
		models, ok, err := cache.GetJSON[[]llm.ModelInfo](ctx, c.cache, modelsCacheKey)
		if err != nil {
			slog.Warn("model cache read failed", "error", err)
		}
		if ok {
			return models, nil
		}
	}

	v, err, _ := c.group.Do(modelsCacheKey, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	models := v.([]llm.ModelInfo)
	return append([]llm.ModelInfo(nil), models...), nil
}

// Invalidate drops the cached model list.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, modelsCacheKey)
}

func (c *Catalog) refresh(ctx context.Context) ([]llm.ModelInfo, error) {
	raw, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]llm.ModelInfo, 0, len(raw))
	for _, m := range raw {
		info := toModelInfo(m)
		if _, ok := c.providers[info.Provider]; !ok {
			continue
		}
		models = append(models, info)
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].ID < models[j].ID
	})

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, modelsCacheKey, models, c.ttl); err != nil {
			slog.Warn("model cache write failed", "error", err)
		}
	}
	slog.Debug("model catalog refreshed", "models", len(models))
	return models, nil
}

// toModelInfo splits a "<provider>/<model>" model name. Names without a
// provider prefix fall back to the proxy's provider field.
func toModelInfo(m Model) llm.ModelInfo {
	info := llm.ModelInfo{ID: m.ModelName, Provider: m.Provider}
	if provider, model, ok := strings.Cut(m.ModelName, "/"); ok {
		info.Provider, info.ID = provider, model
	}
	if caps, ok := m.ModelInfo["capabilities"].([]any); ok {
		for _, c := range caps {
			if s, ok := c.(string); ok {
				info.Capabilities = append(info.Capabilities, s)
			}
		}
	}
	return info
}

// Provider routes completions for one provider through the proxy.
type Provider struct {
	id     string
	client *Client
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.id }

// Chat runs one completion against model on this provider.
func (p *Provider) Chat(ctx context.Context, model string, req chat.Request) (*chat.Response, error) {
	msgs := make([]ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ChatMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := p.client.ChatCompletion(ctx, p.id, CompletionRequest{
		Model:       p.id + "/" + model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		User:        req.AgentType,
	})
	if err != nil {
		return nil, err
	}

	choice := resp.Choices[0]
	return &chat.Response{
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage: chat.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Package llm defines the provider catalog port consumed by the assignment registry
// and the chat router.
package llm

import (
	"context"
	"errors"

	"github.com/Strob0t/devteam/internal/domain/chat"
)

// ErrProviderNotFound is returned by GetProvider for unknown provider ids.
var ErrProviderNotFound = errors.New("llm: provider not found")

// ModelInfo describes a model the catalog can serve.
type ModelInfo struct {
	ID           string   `json:"id"`
	Provider     string   `json:"provider"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Provider is a handle to one AI provider.
type Provider interface {
	// ID returns the provider identifier (e.g. "azure-openai").
	ID() string

	// Chat runs one completion against model. Opaque to the caller.
	Chat(ctx context.Context, model string, req chat.Request) (*chat.Response, error)
}

// Catalog resolves provider handles and lists servable models.
type Catalog interface {
	GetProvider(ctx context.Context, providerID string) (Provider, error)
	ListAvailableModels(ctx context.Context) ([]ModelInfo, error)
}

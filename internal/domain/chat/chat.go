// Package chat defines the request/response types exchanged with AI providers.
package chat

import "errors"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Options tunes a single completion.
type Options struct {
	TaskType    string   `json:"task_type,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// Request is a chat completion request before routing.
type Request struct {
	Model     string    `json:"model,omitempty"`
	AgentType string    `json:"agent_type,omitempty"`
	Messages  []Message `json:"messages"`
	Options
}

// ErrNoMessages is returned for a request without messages.
var ErrNoMessages = errors.New("at least one message is required")

// Validate checks the request for correctness.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	return nil
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Routing records which provider actually answered.
type Routing struct {
	ProviderID string `json:"provider_id"`
	Model      string `json:"model"`
	Attempt    int    `json:"attempt"`
	AgentType  string `json:"agent_type,omitempty"`
}

// Response is a completed chat answer.
type Response struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Usage        Usage   `json:"usage"`
	Routing      Routing `json:"routing"`
}

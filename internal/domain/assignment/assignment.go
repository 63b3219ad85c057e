// Package assignment defines which AI provider and model each agent role prefers.
package assignment

import (
	"errors"
	"sort"
)

// Provider ids known to the curated table.
const (
	ProviderAzureOpenAI  = "azure-openai"
	ProviderAnthropic    = "anthropic-claude"
	ProviderDeepSeek     = "deepseek"
	ProviderGroq         = "groq"
	ProviderGoogleGemini = "google-gemini"
)

// Default provider and model used when nothing more specific applies.
const (
	DefaultProvider = ProviderAzureOpenAI
	DefaultModel    = "gpt-4o"
)

// Target is a concrete provider/model pair.
type Target struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// Fallback is one entry of an agent's fallback chain. Lower priority is tried first.
type Fallback struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	Priority int    `json:"priority" yaml:"priority"`
}

// Assignment is the provider chain configured for one agent type.
type Assignment struct {
	AgentType          string            `json:"agent_type" yaml:"agent_type"`
	PrimaryProvider    string            `json:"primary_provider" yaml:"primary_provider"`
	PrimaryModel       string            `json:"primary_model" yaml:"primary_model"`
	FallbackProviders  []Fallback        `json:"fallback_providers" yaml:"fallback_providers"`
	SpecializedConfigs map[string]Target `json:"specialized_configs,omitempty" yaml:"specialized_configs,omitempty"`
}

var (
	ErrPrimaryProviderRequired = errors.New("primary_provider is required")
	ErrPrimaryModelRequired    = errors.New("primary_model is required")
	ErrFallbackIncomplete      = errors.New("fallback provider and model are required")
)

// Validate checks the assignment shape. Provider existence is checked by the registry.
func (a *Assignment) Validate() error {
	if a.PrimaryProvider == "" {
		return ErrPrimaryProviderRequired
	}
	if a.PrimaryModel == "" {
		return ErrPrimaryModelRequired
	}
	for _, f := range a.FallbackProviders {
		if f.Provider == "" || f.Model == "" {
			return ErrFallbackIncomplete
		}
	}
	return nil
}

// Primary returns the primary target.
func (a Assignment) Primary() Target {
	return Target{Provider: a.PrimaryProvider, Model: a.PrimaryModel}
}

// SortedFallbacks returns a copy of the fallback chain ordered by ascending priority.
func (a Assignment) SortedFallbacks() []Fallback {
	out := make([]Fallback, len(a.FallbackProviders))
	copy(out, a.FallbackProviders)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Clone returns a deep copy.
func (a Assignment) Clone() Assignment {
	a.FallbackProviders = append([]Fallback(nil), a.FallbackProviders...)
	if a.SpecializedConfigs != nil {
		specs := make(map[string]Target, len(a.SpecializedConfigs))
		for k, v := range a.SpecializedConfigs {
			specs[k] = v
		}
		a.SpecializedConfigs = specs
	}
	return a
}

// Default is the assignment handed out for unknown agent types.
func Default(agentType string) Assignment {
	return Assignment{
		AgentType:       agentType,
		PrimaryProvider: DefaultProvider,
		PrimaryModel:    DefaultModel,
		FallbackProviders: []Fallback{
			{Provider: ProviderAnthropic, Model: "claude-3-5-sonnet", Priority: 1},
		},
	}
}

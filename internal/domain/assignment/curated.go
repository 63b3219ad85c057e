package assignment

// Agent types of the simulated delivery team.
const (
	AgentBusinessAnalyst   = "business-analyst"
	AgentArchitect         = "architect"
	AgentBackendDeveloper  = "backend-developer"
	AgentFrontendDeveloper = "frontend-developer"
	AgentQAEngineer        = "qa-engineer"
	AgentProjectManager    = "project-manager"
)

// Task types with specialized provider overrides.
const (
	TaskCodeReview           = "codeReview"
	TaskSystemDesign         = "systemDesign"
	TaskRequirementsAnalysis = "requirementsAnalysis"
	TaskTestGeneration       = "testGeneration"
	TaskUIDesign             = "uiDesign"
	TaskStatusReport         = "statusReport"
)

// Curated returns a fresh copy of the built-in assignment table keyed by agent type.
func Curated() map[string]Assignment {
	table := []Assignment{
		{
			AgentType:       AgentBusinessAnalyst,
			PrimaryProvider: ProviderAnthropic,
			PrimaryModel:    "claude-3-5-sonnet",
			FallbackProviders: []Fallback{
				{Provider: ProviderAzureOpenAI, Model: "gpt-4o", Priority: 1},
				{Provider: ProviderGoogleGemini, Model: "gemini-1.5-pro", Priority: 2},
			},
			SpecializedConfigs: map[string]Target{
				TaskRequirementsAnalysis: {Provider: ProviderAnthropic, Model: "claude-3-opus"},
			},
		},
		{
			AgentType:       AgentArchitect,
			PrimaryProvider: ProviderAnthropic,
			PrimaryModel:    "claude-3-opus",
			FallbackProviders: []Fallback{
				{Provider: ProviderAzureOpenAI, Model: "gpt-4o", Priority: 1},
				{Provider: ProviderGoogleGemini, Model: "gemini-1.5-pro", Priority: 2},
			},
			SpecializedConfigs: map[string]Target{
				TaskSystemDesign: {Provider: ProviderAnthropic, Model: "claude-3-opus"},
				TaskCodeReview:   {Provider: ProviderDeepSeek, Model: "deepseek-coder-v3"},
			},
		},
		{
			AgentType:       AgentBackendDeveloper,
			PrimaryProvider: ProviderDeepSeek,
			PrimaryModel:    "deepseek-coder-v3",
			FallbackProviders: []Fallback{
				{Provider: ProviderAnthropic, Model: "claude-3-5-sonnet", Priority: 1},
				{Provider: ProviderAzureOpenAI, Model: "gpt-4o", Priority: 2},
			},
			SpecializedConfigs: map[string]Target{
				TaskCodeReview: {Provider: ProviderAnthropic, Model: "claude-3-5-sonnet"},
			},
		},
		{
			AgentType:       AgentFrontendDeveloper,
			PrimaryProvider: ProviderAnthropic,
			PrimaryModel:    "claude-3-5-sonnet",
			FallbackProviders: []Fallback{
				{Provider: ProviderDeepSeek, Model: "deepseek-coder-v3", Priority: 1},
				{Provider: ProviderAzureOpenAI, Model: "gpt-4o", Priority: 2},
			},
			SpecializedConfigs: map[string]Target{
				TaskUIDesign: {Provider: ProviderGoogleGemini, Model: "gemini-1.5-pro"},
			},
		},
		{
			AgentType:       AgentQAEngineer,
			PrimaryProvider: ProviderDeepSeek,
			PrimaryModel:    "deepseek-coder-v3",
			FallbackProviders: []Fallback{
				{Provider: ProviderAnthropic, Model: "claude-3-5-sonnet", Priority: 1},
				{Provider: ProviderAzureOpenAI, Model: "gpt-4o", Priority: 2},
				{Provider: ProviderGroq, Model: "llama-3.1-70b", Priority: 3},
			},
			SpecializedConfigs: map[string]Target{
				TaskTestGeneration: {Provider: ProviderDeepSeek, Model: "deepseek-coder-v3"},
				TaskCodeReview:     {Provider: ProviderAnthropic, Model: "claude-3-5-sonnet"},
			},
		},
		{
			AgentType:       AgentProjectManager,
			PrimaryProvider: ProviderAzureOpenAI,
			PrimaryModel:    "gpt-4o",
			FallbackProviders: []Fallback{
				{Provider: ProviderAnthropic, Model: "claude-3-haiku", Priority: 1},
				{Provider: ProviderGroq, Model: "llama-3.1-70b", Priority: 2},
			},
			SpecializedConfigs: map[string]Target{
				TaskStatusReport: {Provider: ProviderGroq, Model: "llama-3.1-70b"},
			},
		},
	}

	out := make(map[string]Assignment, len(table))
	for _, a := range table {
		out[a.AgentType] = a
	}
	return out
}

package types

// ProviderKind is the closed set of model backends the provider layer
// recognizes.
type ProviderKind string

const (
	ProviderKindOpenAICompatible ProviderKind = "openai-compatible"
	ProviderKindOllama          ProviderKind = "ollama"
	ProviderKindQwen            ProviderKind = "qwen"
	ProviderKindAnthropic       ProviderKind = "anthropic"
	// ProviderKindArk is ByteDance Volcano Engine Ark, an additional
	// OpenAI-compatible-style backend alongside the core four kinds.
	ProviderKindArk ProviderKind = "ark"
)

// ProviderDescriptor configures one model backend. Configuration.Providers
// is an ordered list; the first entry is the default, so "set default" is
// implemented by reordering rather than by a separate field.
type ProviderDescriptor struct {
	ID      string       `json:"id"`
	Kind    ProviderKind `json:"kind"`
	APIKey  string       `json:"api_key,omitempty"`
	BaseURL string       `json:"base_url,omitempty"`
	Model   string       `json:"model,omitempty"`
}

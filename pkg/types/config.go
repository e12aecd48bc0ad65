package types

// Configuration scopes, from the layer a value was declared at.
const (
	ScopeGlobal    = "global"
	ScopeWorkspace = "workspace"
)

// StorageConfig names the directories the session store and config layer
// write under. Both are forced workspace-relative on load, whatever the
// on-disk file says.
type StorageConfig struct {
	SessionDir string `json:"session_dir,omitempty"`
	ConfigDir  string `json:"config_dir,omitempty"`
}

// CommandConfig is a custom slash-command definition as it appears in a
// config file's command table.
type CommandConfig struct {
	Template    string `json:"template"`
	Description string `json:"description,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Model       string `json:"model,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`

	// Scope records which configuration layer declared the entry ("global"
	// or "workspace"), set on load and never serialized. The command
	// resolver interleaves the two config layers with the Markdown command
	// directories, and the merged table alone would lose that precedence.
	Scope string `json:"-"`
}

// Configuration is the fully merged, workspace-scoped configuration the
// engine and its collaborators run against.
type Configuration struct {
	Providers    []ProviderDescriptor     `json:"providers,omitempty"`
	Model        string                   `json:"model,omitempty"` // "provider/model" override
	DefaultAgent string                   `json:"default_agent,omitempty"`
	Command      map[string]CommandConfig `json:"command,omitempty"`
	Storage      StorageConfig            `json:"storage"`

	// Turn limits: the tool-calling iteration bound and the
	// history-compression fallbacks for providers without summarization
	// middleware.
	MaxAgentIterations   *int `json:"max_agent_iterations,omitempty"`
	MaxHistoryMessages   *int `json:"max_history_messages,omitempty"`
	MaxMessageContentLen *int `json:"max_message_content_len,omitempty"`
}

// Model describes one LLM model available from a provider, used to
// validate a "provider/model" override and size request budgets.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"provider_id"`
	ContextLength   int    `json:"context_length"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
	SupportsTools   bool   `json:"supports_tools"`
}

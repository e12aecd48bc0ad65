// Package session provides session processing and the agentic loop.
package session

import "github.com/codeturn-ai/opencode/pkg/types"

// Agent represents an agent configuration for processing.
type Agent struct {
	// Name is the agent identifier.
	Name string `json:"name"`

	// Prompt is the base system prompt for this agent.
	Prompt string `json:"prompt"`

	// Temperature for LLM sampling.
	Temperature float64 `json:"temperature,omitempty"`

	// TopP for nucleus sampling.
	TopP float64 `json:"topP,omitempty"`

	// MaxSteps is the maximum number of agentic loop iterations.
	MaxSteps int `json:"maxSteps,omitempty"`

	// MaxHistoryMessages bounds how many trailing history messages a
	// request carries; the synthesized system message always survives the
	// window. Zero means no window.
	MaxHistoryMessages int `json:"maxHistoryMessages,omitempty"`

	// MaxMessageContentLen truncates each history message's content to
	// this many characters, marking the cut. Zero means no truncation.
	MaxMessageContentLen int `json:"maxMessageContentLen,omitempty"`

	// Tools is the list of enabled tool IDs.
	Tools []string `json:"tools,omitempty"`

	// DisabledTools is the list of disabled tool IDs.
	DisabledTools []string `json:"disabledTools,omitempty"`

	// Permission contains permission policy for this agent.
	Permission AgentPermission `json:"permission,omitempty"`
}

// AgentPermission defines permission policies for an agent.
type AgentPermission struct {
	// DoomLoop defines how to handle repeated identical tool calls.
	// Values: "allow", "deny", "ask" (default)
	DoomLoop string `json:"doomLoop,omitempty"`

	// Bash defines the permission policy for bash commands.
	// Values: "allow", "deny", "ask" (default)
	Bash string `json:"bash,omitempty"`

	// Write defines the permission policy for file writes.
	// Values: "allow", "deny", "ask" (default)
	Write string `json:"write,omitempty"`

	// WebFetch defines the permission policy for fetching URLs.
	// Values: "allow", "deny", "ask" (default)
	WebFetch string `json:"webFetch,omitempty"`
}

// IsReadOnly reports whether this agent's permission set forbids writes.
// The turn engine's system-message construction prepends a
// "read-only" disclosure, and forbids edits/destructive commands in the
// same prose, for any agent where this holds.
func (a *Agent) IsReadOnly() bool {
	return a.Permission.Write == "deny"
}

// ToolEnabled returns whether a tool is enabled for this agent.
func (a *Agent) ToolEnabled(toolID string) bool {
	// Check if explicitly disabled
	for _, disabled := range a.DisabledTools {
		if disabled == toolID {
			return false
		}
	}

	// If Tools is empty, all tools are enabled
	if len(a.Tools) == 0 {
		return true
	}

	// Check if explicitly enabled
	for _, enabled := range a.Tools {
		if enabled == toolID {
			return true
		}
	}

	return false
}

// DefaultAgent returns the default agent configuration.
func DefaultAgent() *Agent {
	return &Agent{
		Name:        "default",
		Temperature: 0.7,
		TopP:        1.0,
		MaxSteps:    50,
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
			Write:    "ask",
			WebFetch: "ask",
		},
	}
}

// CodeAgent returns an agent optimized for coding tasks.
func CodeAgent() *Agent {
	return &Agent{
		Name:        "code",
		Temperature: 0.3,
		TopP:        0.95,
		MaxSteps:    100,
		Prompt: `You are an expert software engineer helping with coding tasks.
Focus on writing clean, maintainable code. Follow best practices and existing conventions in the codebase.
When making changes, prefer minimal modifications and explain your reasoning.`,
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
			Write:    "allow",
			WebFetch: "allow",
		},
	}
}

// BuildAgent returns the full-capability agent: every registered tool is
// available and file writes are allowed without prompting.
func BuildAgent() *Agent {
	return &Agent{
		Name:        "build",
		Temperature: 0.3,
		TopP:        0.95,
		MaxSteps:    100,
		Permission: AgentPermission{
			DoomLoop: "ask",
			Bash:     "ask",
			Write:    "allow",
			WebFetch: "allow",
		},
	}
}

// AgentByName resolves a named agent role. "plan" gets the read-only mask,
// "build" the full toolset; "general" delegates to build's behavior under
// its own name. Unknown names fall back to the default agent so a typo in
// config degrades rather than aborts the turn.
func AgentByName(name string) *Agent {
	switch name {
	case "build":
		return BuildAgent()
	case "plan":
		return PlanAgent()
	case "general":
		a := BuildAgent()
		a.Name = "general"
		return a
	case "code":
		return CodeAgent()
	case "", "default":
		return DefaultAgent()
	default:
		a := DefaultAgent()
		a.Name = name
		return a
	}
}

// ApplyConfigLimits copies the workspace configuration's turn limits onto
// an agent: the tool-calling iteration bound and the history-compression
// knobs. Unset config fields leave the agent's own values alone, so the
// absence of max_agent_iterations defers to the agent default rather than
// injecting a magic number.
func ApplyConfigLimits(a *Agent, cfg *types.Configuration) {
	if a == nil || cfg == nil {
		return
	}
	if cfg.MaxAgentIterations != nil && *cfg.MaxAgentIterations > 0 {
		a.MaxSteps = *cfg.MaxAgentIterations
	}
	if cfg.MaxHistoryMessages != nil && *cfg.MaxHistoryMessages > 0 {
		a.MaxHistoryMessages = *cfg.MaxHistoryMessages
	}
	if cfg.MaxMessageContentLen != nil && *cfg.MaxMessageContentLen > 0 {
		a.MaxMessageContentLen = *cfg.MaxMessageContentLen
	}
}

// PlanModeTools is the fixed read-only tool mask plan-mode agents are
// restricted to: read files, list directories, search file names and
// content. Named the way the mask is described rather than after the
// registry's own tool IDs, since the two vocabularies don't line up
// one-to-one (there is no standalone "codesearch" tool; it resolves to
// grep+glob together).
var PlanModeTools = []string{"read", "ls", "list_files", "grep", "codesearch", "glob"}

// planModeToolAliases resolves each PlanModeTools name to the registry tool
// ID(s) that implement it.
var planModeToolAliases = map[string][]string{
	"read":       {"read"},
	"ls":         {"list"},
	"list_files": {"list", "glob"},
	"grep":       {"grep"},
	"codesearch": {"grep", "glob"},
	"glob":       {"glob"},
}

// planModeAllowedTools expands PlanModeTools into the concrete set of
// registry tool IDs a plan-mode agent may call.
func planModeAllowedTools() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, name := range PlanModeTools {
		for _, id := range planModeToolAliases[name] {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// PlanAgent returns an agent optimized for planning tasks. It grants an
// explicit allowlist of read-only tools rather than a denylist of mutating
// ones, so adding a new mutating tool to the registry doesn't silently
// leak into plan mode until someone remembers to disable it.
func PlanAgent() *Agent {
	return &Agent{
		Name:        "plan",
		Temperature: 0.5,
		TopP:        1.0,
		MaxSteps:    20,
		Prompt: `You are a helpful assistant focused on planning and analysis.
Break down complex tasks into manageable steps and provide clear explanations.
Focus on understanding the problem before suggesting solutions.`,
		Tools: planModeAllowedTools(),
		Permission: AgentPermission{
			DoomLoop: "deny",
			Bash:     "deny",
			Write:    "deny",
			WebFetch: "deny",
		},
	}
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaskExecutor runs a prompt as a nested turn against a named subagent in
// a fresh child session and returns the child's final reply.
type TaskExecutor interface {
	ExecuteSubtask(ctx context.Context, parentSessionID, agentName, prompt string) (output string, childSessionID string, err error)
}

// subagentNames is the closed set of roles the task tool may delegate to.
var subagentNames = map[string]bool{"general": true, "plan": true}

// TaskTool spawns a subagent turn. The child's messages live in their own
// session; only the final text comes back as this tool's output.
type TaskTool struct {
	executor TaskExecutor
}

func NewTaskTool(executor TaskExecutor) *TaskTool { return &TaskTool{executor: executor} }

func (t *TaskTool) ID() string { return "task" }
func (t *TaskTool) Description() string {
	return "Delegate a self-contained task to a subagent (general or plan)"
}

func (t *TaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"description": {"type": "string", "description": "A short (3-5 word) description of the task"},
			"prompt": {"type": "string", "description": "The full task for the subagent to perform"},
			"subagentType": {"type": "string", "description": "Which subagent to use: general or plan"}
		},
		"required": ["description", "prompt", "subagentType"]
	}`)
}

func (t *TaskTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		Description  string `json:"description"`
		Prompt       string `json:"prompt"`
		SubagentType string `json:"subagentType"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if !subagentNames[params.SubagentType] {
		return nil, fmt.Errorf("unknown subagent type %q (available: general, plan)", params.SubagentType)
	}
	if t.executor == nil {
		return nil, fmt.Errorf("subagent execution is not configured")
	}

	output, childID, err := t.executor.ExecuteSubtask(ctx, tc.SessionID, params.SubagentType, params.Prompt)
	if err != nil {
		return nil, fmt.Errorf("subtask failed: %w", err)
	}

	return &Result{
		Title:    params.Description,
		Output:   output,
		Metadata: map[string]any{"subagent": params.SubagentType, "child_session": childID},
	}, nil
}

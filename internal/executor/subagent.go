// Package executor runs subagent turns on behalf of the task tool: each
// delegation gets a fresh child session and a nested turn through the same
// engine.
package executor

import (
	"context"
	"fmt"

	"github.com/codeturn-ai/opencode/internal/session"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// SubagentExecutor implements the task tool's executor contract.
type SubagentExecutor struct {
	store *sessionstore.Store
	proc  *session.Processor
}

// NewSubagentExecutor wires an executor over the engine and store the
// parent turn already uses.
func NewSubagentExecutor(store *sessionstore.Store, proc *session.Processor) *SubagentExecutor {
	return &SubagentExecutor{store: store, proc: proc}
}

// ExecuteSubtask runs prompt as one turn of agentName in a new child
// session and returns the child's final reply. The child's messages are
// never spliced into the parent; and the child turn runs with the parent's
// update sink detached, so its terminal ReplyDone can't corrupt the parent
// turn's update stream.
func (e *SubagentExecutor) ExecuteSubtask(ctx context.Context, parentSessionID, agentName, prompt string) (string, string, error) {
	child := types.NewSession()
	if err := e.store.Save(child); err != nil {
		return "", "", fmt.Errorf("create child session: %w", err)
	}

	ctx = session.WithoutUpdateSink(ctx)
	agent := session.AgentByName(agentName)

	output, err := e.proc.Process(ctx, child.ID, prompt, agent, "")
	if err != nil {
		return "", child.ID.String(), err
	}
	return output, child.ID.String(), nil
}

package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	lastAgent  string
	lastPrompt string
}

func (f *fakeExecutor) ExecuteSubtask(ctx context.Context, parentID, agentName, prompt string) (string, string, error) {
	f.lastAgent = agentName
	f.lastPrompt = prompt
	return "child says hi", "child-session-id", nil
}

func TestTask_DelegatesToExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	tl := NewTaskTool(exec)

	input := `{"description":"summarize","prompt":"summarize utils.go","subagentType":"general"}`
	res, err := tl.Execute(context.Background(), json.RawMessage(input), &Context{SessionID: "parent"})
	require.NoError(t, err)

	assert.Equal(t, "child says hi", res.Output)
	assert.Equal(t, "general", exec.lastAgent)
	assert.Equal(t, "summarize utils.go", exec.lastPrompt)
	assert.Equal(t, "child-session-id", res.Metadata["child_session"])
}

func TestTask_RejectsUnknownSubagent(t *testing.T) {
	tl := NewTaskTool(&fakeExecutor{})
	input := `{"description":"x","prompt":"y","subagentType":"build"}`
	_, err := tl.Execute(context.Background(), json.RawMessage(input), &Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown subagent type")
}

func TestTask_RequiresExecutor(t *testing.T) {
	tl := NewTaskTool(nil)
	input := `{"description":"x","prompt":"y","subagentType":"general"}`
	_, err := tl.Execute(context.Background(), json.RawMessage(input), &Context{})
	assert.Error(t, err)
}

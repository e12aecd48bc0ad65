package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	bashDefaultTimeout = 2 * time.Minute
	bashMaxOutput      = 50_000
)

// BashTool runs a shell command in the workspace through an embedded POSIX
// interpreter, so behavior is the same on hosts without a real shell.
type BashTool struct {
	workDir string
}

func NewBashTool(workDir string) *BashTool { return &BashTool{workDir: workDir} }

func (t *BashTool) ID() string          { return "bash" }
func (t *BashTool) Description() string { return "Run a shell command in the workspace" }

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to run"},
			"timeout": {"type": "integer", "description": "Timeout in seconds"}
		},
		"required": ["command"]
	}`)
}

// NormalizeArgs coerces a bare command string into {"command": ...}.
func (t *BashTool) NormalizeArgs(raw json.RawMessage, workDir string) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	if obj, err := json.Marshal(map[string]string{"command": s}); err == nil {
		return obj
	}
	return raw
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(params.Command) == "" {
		return nil, fmt.Errorf("command is required")
	}

	timeout := bashDefaultTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	file, err := syntax.NewParser().Parse(strings.NewReader(params.Command), "")
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	var out bytes.Buffer
	runner, err := interp.New(interp.Dir(t.workDir), interp.StdIO(nil, &out, &out))
	if err != nil {
		return nil, err
	}

	runErr := runner.Run(runCtx, file)

	exitCode := 0
	if status, ok := interp.IsExitStatus(runErr); ok {
		exitCode = int(status)
		runErr = nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %s", timeout)
	}
	if runErr != nil {
		return nil, runErr
	}

	output := out.String()
	if len(output) > bashMaxOutput {
		output = output[:bashMaxOutput] + "\n… (truncated)"
	}
	if exitCode != 0 {
		output = fmt.Sprintf("%s\n(exit status %d)", output, exitCode)
	}

	return &Result{
		Title:    params.Command,
		Output:   output,
		Metadata: map[string]any{"exit_code": exitCode},
	}, nil
}

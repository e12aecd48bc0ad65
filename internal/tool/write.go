package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteTool creates or overwrites a file, creating parent directories as
// needed.
type WriteTool struct {
	workDir string
}

func NewWriteTool(workDir string) *WriteTool { return &WriteTool{workDir: workDir} }

func (t *WriteTool) ID() string          { return "write" }
func (t *WriteTool) Description() string { return "Write content to a file, creating it if needed" }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "description": "Path of the file to write"},
			"content": {"type": "string", "description": "Full content to write"}
		},
		"required": ["filePath", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		FilePath string `json:"filePath"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.FilePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	path := params.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.workDir, path)
	}

	before := ""
	if old, err := os.ReadFile(path); err == nil {
		before = string(old)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return nil, err
	}

	return &Result{
		Title:    params.FilePath,
		Output:   fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.FilePath),
		Metadata: changeMetadata(params.FilePath, before, params.Content),
	}, nil
}

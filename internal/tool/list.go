package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const listMaxEntries = 500

// ListTool lists a directory, directories suffixed with a slash.
type ListTool struct {
	workDir string
}

func NewListTool(workDir string) *ListTool { return &ListTool{workDir: workDir} }

func (t *ListTool) ID() string          { return "list" }
func (t *ListTool) Description() string { return "List the entries of a directory" }

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory to list (defaults to the workspace)"}
		}
	}`)
}

// NormalizeArgs coerces a bare path string into {"path": ...}; an absent
// or empty path falls back to the workspace.
func (t *ListTool) NormalizeArgs(raw json.RawMessage, workDir string) json.RawMessage {
	normalized := normalizeStringArg(raw, "path")

	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(normalized, &params); err == nil && params.Path == "" && workDir != "" {
		if obj, err := json.Marshal(map[string]string{"path": workDir}); err == nil {
			return obj
		}
	}
	return normalized
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path := params.Path
	if path == "" {
		path = t.workDir
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(t.workDir, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	shown := 0
	for _, entry := range entries {
		if shown >= listMaxEntries {
			b.WriteString("… (truncated)\n")
			break
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		b.WriteString(name)
		b.WriteByte('\n')
		shown++
	}

	return &Result{
		Title:    path,
		Output:   b.String(),
		Metadata: map[string]any{"entries": shown},
	}, nil
}

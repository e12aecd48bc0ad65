package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const globMaxMatches = 100

// GlobTool matches files with doublestar patterns ("**/*.go").
type GlobTool struct {
	workDir string
}

func NewGlobTool(workDir string) *GlobTool { return &GlobTool{workDir: workDir} }

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return "Find files matching a glob pattern" }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Glob pattern, ** supported"},
			"path": {"type": "string", "description": "Directory to search under (defaults to the workspace)"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	root := params.Path
	if root == "" {
		root = t.workDir
	} else if !filepath.IsAbs(root) {
		root = filepath.Join(t.workDir, root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", params.Pattern, err)
	}
	sort.Strings(matches)

	truncated := false
	if len(matches) > globMaxMatches {
		matches = matches[:globMaxMatches]
		truncated = true
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m)
		b.WriteByte('\n')
	}
	if truncated {
		b.WriteString("… (truncated)\n")
	}
	if len(matches) == 0 {
		b.WriteString("no matches\n")
	}

	return &Result{
		Title:    params.Pattern,
		Output:   b.String(),
		Metadata: map[string]any{"matches": len(matches)},
	}, nil
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
)

// EditTool performs exact string replacement in a file. Without
// replaceAll, the old string must occur exactly once.
type EditTool struct {
	workDir string
}

func NewEditTool(workDir string) *EditTool { return &EditTool{workDir: workDir} }

func (t *EditTool) ID() string { return "edit" }
func (t *EditTool) Description() string {
	return "Replace an exact string in a file (must be unique unless replaceAll)"
}

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "description": "Path of the file to edit"},
			"oldString": {"type": "string", "description": "Exact text to replace"},
			"newString": {"type": "string", "description": "Replacement text"},
			"replaceAll": {"type": "boolean", "description": "Replace every occurrence"}
		},
		"required": ["filePath", "oldString", "newString"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		FilePath   string `json:"filePath"`
		OldString  string `json:"oldString"`
		NewString  string `json:"newString"`
		ReplaceAll bool   `json:"replaceAll"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.FilePath == "" || params.OldString == "" {
		return nil, fmt.Errorf("filePath and oldString are required")
	}
	if params.OldString == params.NewString {
		return nil, fmt.Errorf("oldString and newString are identical")
	}

	path := params.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.workDir, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	before := string(raw)

	count := strings.Count(before, params.OldString)
	switch {
	case count == 0:
		hint := closestSnippet(before, params.OldString)
		if hint != "" {
			return nil, fmt.Errorf("oldString not found in %s; closest line is %q", params.FilePath, hint)
		}
		return nil, fmt.Errorf("oldString not found in %s", params.FilePath)
	case count > 1 && !params.ReplaceAll:
		return nil, fmt.Errorf("oldString occurs %d times in %s; pass replaceAll or disambiguate", count, params.FilePath)
	}

	after := strings.Replace(before, params.OldString, params.NewString, 1)
	replaced := 1
	if params.ReplaceAll {
		after = strings.ReplaceAll(before, params.OldString, params.NewString)
		replaced = count
	}

	if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
		return nil, err
	}

	return &Result{
		Title:    params.FilePath,
		Output:   fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, params.FilePath),
		Metadata: changeMetadata(params.FilePath, before, after),
	}, nil
}

// closestSnippet finds the file line nearest the sought text by edit
// distance, giving the model something concrete to retry with.
func closestSnippet(content, sought string) string {
	target := strings.TrimSpace(sought)
	if target == "" || len(target) > 200 {
		return ""
	}

	best, bestDist := "", len(target)/2+1
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 300 {
			continue
		}
		if d := levenshtein.ComputeDistance(target, trimmed); d < bestDist {
			best, bestDist = trimmed, d
		}
	}
	return best
}

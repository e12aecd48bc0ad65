package tool

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	grepMaxMatches  = 100
	grepMaxFileSize = 1 << 20
)

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	workDir string
}

func NewGrepTool(workDir string) *GrepTool { return &GrepTool{workDir: workDir} }

func (t *GrepTool) ID() string          { return "grep" }
func (t *GrepTool) Description() string { return "Search file contents with a regular expression" }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Regular expression to search for"},
			"path": {"type": "string", "description": "Directory to search under (defaults to the workspace)"},
			"include": {"type": "string", "description": "Glob limiting which files are searched, e.g. *.go"}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Include string `json:"include"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", params.Pattern, err)
	}

	root := params.Path
	if root == "" {
		root = t.workDir
	} else if !filepath.IsAbs(root) {
		root = filepath.Join(t.workDir, root)
	}

	var b strings.Builder
	matches := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if matches >= grepMaxMatches {
			return fs.SkipAll
		}
		if d.IsDir() {
			if name := d.Name(); name == ".git" || name == "node_modules" {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, _ := filepath.Rel(root, path)
		if params.Include != "" {
			if ok, _ := doublestar.Match(params.Include, filepath.Base(path)); !ok {
				return nil
			}
		}
		if info, err := d.Info(); err != nil || info.Size() > grepMaxFileSize {
			return nil
		}

		matches += grepFile(path, rel, re, grepMaxMatches-matches, &b)
		return nil
	})
	if err != nil && err != fs.SkipAll {
		return nil, err
	}

	if matches == 0 {
		b.WriteString("no matches\n")
	} else if matches >= grepMaxMatches {
		b.WriteString("… (truncated)\n")
	}

	return &Result{
		Title:    params.Pattern,
		Output:   b.String(),
		Metadata: map[string]any{"matches": matches},
	}, nil
}

// grepFile appends up to budget "path:line: text" matches and returns how
// many it found. Binary-looking files are skipped.
func grepFile(path, rel string, re *regexp.Regexp, budget int, out *strings.Builder) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return 0
	}
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}

	found := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if found >= budget {
			break
		}
		line := scanner.Text()
		if re.MatchString(line) {
			if len(line) > 250 {
				line = line[:250] + "…"
			}
			fmt.Fprintf(out, "%s:%d: %s\n", rel, lineNo, line)
			found++
		}
	}
	return found
}

// Package command provides slash-command resolution and template expansion.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/logging"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// Command is a resolved slash command: either a built-in, a Markdown file
// from the global or workspace commands directory, or an entry from the
// config's command table.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
	Agent       string `json:"agent,omitempty"`
	Model       string `json:"model,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`
	Source      string `json:"source,omitempty"` // "builtin", "global", "workspace" or "config"
}

// ExecuteResult is the outcome of expanding a command against user input.
type ExecuteResult struct {
	Prompt      string `json:"prompt"`
	Agent       string `json:"agent,omitempty"`
	Model       string `json:"model,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`
	CommandName string `json:"commandName"`
}

// Executor resolves command names and expands their templates.
//
// Resolution order, later entries overriding earlier ones on an id
// collision: built-ins, global Markdown files (<config>/opencode/commands),
// the global config command table, workspace Markdown files
// (<workspace>/.opencode/commands), and finally the workspace config
// command table. Each config entry carries the scope that declared it, so
// a global-only table entry is still beaten by a workspace Markdown file.
type Executor struct {
	workDir   string
	globalDir string
	cfg       *types.Configuration
	commands  map[string]*Command
}

// NewExecutor creates a command executor rooted at workDir.
func NewExecutor(workDir string, cfg *types.Configuration) *Executor {
	e := &Executor{
		workDir:   workDir,
		globalDir: filepath.Join(config.GetPaths().Config, "commands"),
		cfg:       cfg,
		commands:  make(map[string]*Command),
	}
	e.Reload()
	return e
}

// Reload re-resolves the command set from built-ins, disk and config.
func (e *Executor) Reload() {
	e.commands = make(map[string]*Command)

	for _, cmd := range BuiltinCommands() {
		e.commands[cmd.Name] = cmd
	}

	e.loadFromDir(e.globalDir, types.ScopeGlobal)
	e.loadFromConfig(types.ScopeGlobal)
	e.loadFromDir(filepath.Join(e.workDir, ".opencode", "commands"), types.ScopeWorkspace)
	e.loadFromConfig(types.ScopeWorkspace)
}

// loadFromConfig registers the config table entries declared at one scope.
// An entry with no recorded scope (a hand-built configuration) counts as
// workspace-scoped, the highest layer.
func (e *Executor) loadFromConfig(scope string) {
	if e.cfg == nil {
		return
	}
	for name, cc := range e.cfg.Command {
		entryScope := cc.Scope
		if entryScope == "" {
			entryScope = types.ScopeWorkspace
		}
		if entryScope != scope {
			continue
		}
		e.commands[name] = &Command{
			Name:        name,
			Description: cc.Description,
			Template:    cc.Template,
			Agent:       cc.Agent,
			Model:       cc.Model,
			Subtask:     cc.Subtask,
			Source:      "config",
		}
	}
}

// loadFromDir registers every readable, non-empty Markdown command under
// dir. A nested file such as git/commit.md registers as "git:commit".
func (e *Executor) loadFromDir(dir, source string) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			logging.Warn().Str("path", path).Err(err).Msg("skipping unreadable command file")
			return nil
		}

		cmd := parseMarkdown(string(content))
		if cmd.Template == "" {
			return nil
		}

		rel, _ := filepath.Rel(dir, path)
		cmd.Name = strings.ReplaceAll(strings.TrimSuffix(rel, ".md"), string(filepath.Separator), ":")
		cmd.Source = source
		e.commands[cmd.Name] = cmd
		return nil
	})
}

// parseMarkdown splits an optional front-matter block from the template
// body. A file whose front matter is missing, unterminated or malformed
// degrades to "whole file is the template, no metadata".
func parseMarkdown(content string) *Command {
	cmd := &Command{Template: strings.TrimSpace(content)}

	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return cmd
	}
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		return cmd
	}

	var meta struct {
		Description string `yaml:"description"`
		Agent       string `yaml:"agent"`
		Model       string `yaml:"model"`
		Subtask     bool   `yaml:"subtask"`
	}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return cmd
	}

	cmd.Description = meta.Description
	cmd.Agent = meta.Agent
	cmd.Model = meta.Model
	cmd.Subtask = meta.Subtask
	cmd.Template = strings.TrimSpace(rest[idx+len("\n---\n"):])
	return cmd
}

// List returns all resolved commands sorted by name.
func (e *Executor) List() []*Command {
	cmds := make([]*Command, 0, len(e.commands))
	for _, cmd := range e.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Get returns a command by name.
func (e *Executor) Get(name string) (*Command, bool) {
	cmd, ok := e.commands[name]
	return cmd, ok
}

// Execute expands the named command's template against the user's input.
// The only error is an unknown command name; expansion itself never fails,
// it degrades (unresolved markers become empty strings).
func (e *Executor) Execute(ctx context.Context, name string, input string) (*ExecuteResult, error) {
	cmd, ok := e.commands[name]
	if !ok {
		if suggestion := e.closestName(name); suggestion != "" {
			return nil, fmt.Errorf("command not found: %s (did you mean %q?)", name, suggestion)
		}
		return nil, fmt.Errorf("command not found: %s", name)
	}

	return &ExecuteResult{
		Prompt:      e.Expand(ctx, cmd.Template, input),
		Agent:       cmd.Agent,
		Model:       cmd.Model,
		Subtask:     cmd.Subtask,
		CommandName: cmd.Name,
	}, nil
}

// closestName returns the nearest known command name within an edit
// distance of 3, or "" when nothing is close enough to suggest.
func (e *Executor) closestName(name string) string {
	best, bestDist := "", 4
	for candidate := range e.commands {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

var positionalRe = regexp.MustCompile(`\$(\d+)`)

// Expand applies the template substitutions in order, one single pass each:
// $ARGUMENTS, positional $1..$n, !`cmd` shell substitution, @path file
// inclusion. Expansion is deliberately non-recursive: the output of a shell
// substitution is not rescanned for @ or further backticks.
func (e *Executor) Expand(ctx context.Context, template, input string) string {
	out := strings.ReplaceAll(template, "$ARGUMENTS", strings.TrimSpace(input))

	tokens := strings.Fields(input)
	out = positionalRe.ReplaceAllStringFunc(out, func(m string) string {
		var n int
		fmt.Sscanf(m[1:], "%d", &n)
		if n >= 1 && n <= len(tokens) {
			return tokens[n-1]
		}
		return ""
	})

	return e.expandSubstitutions(ctx, out)
}

// expandSubstitutions replaces each !`cmd` with the command's standard
// output and each @path with the named file's contents, in one
// left-to-right pass. Substituted output goes straight to the result and is
// never rescanned, which is what keeps expansion non-recursive. Unclosed
// backticks pass through literally.
func (e *Executor) expandSubstitutions(ctx context.Context, s string) string {
	var b strings.Builder
	for {
		shell := strings.Index(s, "!`")
		file := strings.Index(s, "@")
		if shell < 0 && file < 0 {
			b.WriteString(s)
			return b.String()
		}

		if shell >= 0 && (file < 0 || shell < file) {
			end := strings.Index(s[shell+2:], "`")
			if end < 0 {
				b.WriteString(s)
				return b.String()
			}
			b.WriteString(s[:shell])
			b.WriteString(e.runShell(ctx, s[shell+2:shell+2+end]))
			s = s[shell+2+end+1:]
			continue
		}

		m := fileIncludeRe.FindStringIndex(s[file:])
		if m == nil || m[0] != 0 {
			// A bare "@" with nothing after it; emit it and move on.
			b.WriteString(s[:file+1])
			s = s[file+1:]
			continue
		}
		b.WriteString(s[:file])
		b.WriteString(e.readInclude(s[file+1 : file+m[1]]))
		s = s[file+m[1]:]
	}
}

// runShell runs cmd with the workspace as working directory and returns its
// standard output; stderr is discarded and any parse, setup or non-zero
// exit yields the empty string. The embedded interpreter keeps expansion
// deterministic across platforms and shell-less environments.
func (e *Executor) runShell(ctx context.Context, cmd string) string {
	file, err := syntax.NewParser().Parse(strings.NewReader(cmd), "")
	if err != nil {
		return ""
	}
	var stdout bytes.Buffer
	runner, err := interp.New(interp.Dir(e.workDir), interp.StdIO(nil, &stdout, io.Discard))
	if err != nil {
		return ""
	}
	if err := runner.Run(ctx, file); err != nil {
		return ""
	}
	return strings.TrimRight(stdout.String(), "\n")
}

var fileIncludeRe = regexp.MustCompile(`@(\S+)`)

// readInclude returns the contents of the file at workspace/path. A missing
// or unreadable file substitutes the empty string.
func (e *Executor) readInclude(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.workDir, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(content)
}

// initTemplate is the built-in "/init" prompt: it asks the model itself to
// survey the repository and write or refresh AGENTS.md, rather than having
// the CLI generate the file mechanically.
const initTemplate = `Please analyze this codebase and create an AGENTS.md file containing:
1. Build/lint/test commands - especially for running a single test
2. Code style guidelines including imports, formatting, types, naming conventions, error handling, etc.

The file you create will be given to agentic coding agents (such as yourself) that operate in this repository. Make it about 20 lines long.
If there are Cursor rules (in .cursor/rules/ or .cursorrules) or Copilot rules (in .github/copilot-instructions.md), make sure to include them.

If there's already an AGENTS.md, improve it.

$ARGUMENTS
`

// BuiltinCommands returns the always-present built-in command set: init,
// undo, redo, share, help. Custom commands with these ids override them.
// Apart from init, the built-ins carry no template; they are actions the
// embedding surface performs directly.
func BuiltinCommands() []*Command {
	return []*Command{
		{
			Name:        "init",
			Description: "create/update AGENTS.md",
			Template:    initTemplate,
			Source:      "builtin",
		},
		{
			Name:        "undo",
			Description: "Undo the last message",
			Source:      "builtin",
		},
		{
			Name:        "redo",
			Description: "Redo the last undone message",
			Source:      "builtin",
		},
		{
			Name:        "share",
			Description: "Share the current session",
			Source:      "builtin",
		},
		{
			Name:        "help",
			Description: "Show available commands and help information",
			Source:      "builtin",
		},
	}
}

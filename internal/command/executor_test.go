package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturn-ai/opencode/pkg/types"
)

func writeCommandFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestExecutor(t *testing.T, cfg *types.Configuration) (*Executor, string) {
	t.Helper()
	workDir := t.TempDir()
	// Point the global commands directory at an empty scratch location so
	// the developer's real config cannot leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return NewExecutor(workDir, cfg), workDir
}

func TestBuiltinsAlwaysPresent(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	for _, name := range []string{"init", "undo", "redo", "share", "help"} {
		cmd, ok := e.Get(name)
		require.True(t, ok, "builtin %q missing", name)
		assert.Equal(t, "builtin", cmd.Source)
	}
}

func TestConfigCommandRegistered(t *testing.T) {
	cfg := &types.Configuration{
		Command: map[string]types.CommandConfig{
			"greet": {
				Template:    "Hello, $1!",
				Description: "Greet someone",
				Agent:       "build",
				Model:       "anthropic/claude-sonnet-4",
				Subtask:     true,
			},
		},
	}
	e, _ := newTestExecutor(t, cfg)

	cmd, ok := e.Get("greet")
	require.True(t, ok)
	assert.Equal(t, "Hello, $1!", cmd.Template)
	assert.Equal(t, "Greet someone", cmd.Description)
	assert.Equal(t, "build", cmd.Agent)
	assert.True(t, cmd.Subtask)
	assert.Equal(t, "config", cmd.Source)
}

func TestWorkspaceMarkdownOverridesBuiltin(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	writeCommandFile(t, filepath.Join(workDir, ".opencode", "commands"), "init.md",
		"Custom init template: $ARGUMENTS")
	e.Reload()

	// Exactly one entry for the id, with the Markdown template winning.
	count := 0
	for _, cmd := range e.List() {
		if cmd.Name == "init" {
			count++
			assert.Equal(t, "Custom init template: $ARGUMENTS", cmd.Template)
			assert.Equal(t, "workspace", cmd.Source)
		}
	}
	assert.Equal(t, 1, count)
}

func TestWorkspaceConfigOverridesWorkspaceMarkdown(t *testing.T) {
	cfg := &types.Configuration{
		Command: map[string]types.CommandConfig{
			"deploy": {Template: "from config", Scope: types.ScopeWorkspace},
		},
	}
	e, workDir := newTestExecutor(t, cfg)
	writeCommandFile(t, filepath.Join(workDir, ".opencode", "commands"), "deploy.md", "from markdown")
	e.Reload()

	cmd, ok := e.Get("deploy")
	require.True(t, ok)
	assert.Equal(t, "from config", cmd.Template)
}

func TestWorkspaceMarkdownOverridesGlobalConfig(t *testing.T) {
	cfg := &types.Configuration{
		Command: map[string]types.CommandConfig{
			"deploy": {Template: "from global config", Scope: types.ScopeGlobal},
		},
	}
	e, workDir := newTestExecutor(t, cfg)
	writeCommandFile(t, filepath.Join(workDir, ".opencode", "commands"), "deploy.md", "from workspace markdown")
	e.Reload()

	cmd, ok := e.Get("deploy")
	require.True(t, ok)
	assert.Equal(t, "from workspace markdown", cmd.Template)
}

func TestCommandResolutionOrder(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	workDir := t.TempDir()

	globalMD := filepath.Join(xdg, "opencode", "commands")
	workspaceMD := filepath.Join(workDir, ".opencode", "commands")
	writeCommandFile(t, globalMD, "a.md", "a: global markdown")
	writeCommandFile(t, globalMD, "b.md", "b: global markdown")
	writeCommandFile(t, workspaceMD, "b.md", "b: workspace markdown")
	writeCommandFile(t, workspaceMD, "c.md", "c: workspace markdown")
	writeCommandFile(t, workspaceMD, "d.md", "d: workspace markdown")

	cfg := &types.Configuration{Command: map[string]types.CommandConfig{
		"a": {Template: "a: global config", Scope: types.ScopeGlobal},
		"c": {Template: "c: workspace config", Scope: types.ScopeWorkspace},
		"d": {Template: "d: global config", Scope: types.ScopeGlobal},
	}}
	e := NewExecutor(workDir, cfg)

	for name, want := range map[string]string{
		"a": "a: global config",       // global config beats global markdown
		"b": "b: workspace markdown",  // workspace markdown beats global markdown
		"c": "c: workspace config",    // workspace config beats workspace markdown
		"d": "d: workspace markdown",  // workspace markdown beats global config
	} {
		cmd, ok := e.Get(name)
		require.True(t, ok, "command %q missing", name)
		assert.Equal(t, want, cmd.Template, "command %q resolved at the wrong layer", name)
	}
}

func TestNestedMarkdownName(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	writeCommandFile(t, filepath.Join(workDir, ".opencode", "commands"), "git/commit.md", "Write a commit message")
	e.Reload()

	_, ok := e.Get("git:commit")
	assert.True(t, ok)
}

func TestFrontMatterParsed(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	writeCommandFile(t, filepath.Join(workDir, ".opencode", "commands"), "test.md",
		"---\ndescription: Run tests\nagent: plan\nsubtask: true\n---\nRun the tests for $1")
	e.Reload()

	cmd, ok := e.Get("test")
	require.True(t, ok)
	assert.Equal(t, "Run tests", cmd.Description)
	assert.Equal(t, "plan", cmd.Agent)
	assert.True(t, cmd.Subtask)
	assert.Equal(t, "Run the tests for $1", cmd.Template)
}

func TestUnterminatedFrontMatterIsTemplate(t *testing.T) {
	content := "---\ndescription: never closed\nbody text"
	cmd := parseMarkdown(content)
	assert.Empty(t, cmd.Description)
	assert.Equal(t, content, cmd.Template)
}

func TestMalformedFrontMatterIsTemplate(t *testing.T) {
	content := "---\n: [not yaml\n---\nbody"
	cmd := parseMarkdown(content)
	assert.Empty(t, cmd.Description)
	assert.Equal(t, content, cmd.Template)
}

func TestEmptyTemplateSkipped(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	writeCommandFile(t, filepath.Join(workDir, ".opencode", "commands"), "empty.md", "   \n\n  ")
	e.Reload()

	_, ok := e.Get("empty")
	assert.False(t, ok)
}

func TestExpandArguments(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "Fix this: $ARGUMENTS", "  the bug  ")
	assert.Equal(t, "Fix this: the bug", out)
}

func TestExpandPositional(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "$1 then $2 then $3", "alpha beta")
	assert.Equal(t, "alpha then beta then ", out)
}

func TestExpandShellSubstitution(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "value: !`echo hi`", "")
	assert.Equal(t, "value: hi", out)
}

func TestExpandShellFailureIsEmpty(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "value: !`false`", "")
	assert.Equal(t, "value: ", out)
}

func TestExpandShellStderrDiscarded(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "!`echo visible; echo hidden >&2`", "")
	assert.Equal(t, "visible", out)
}

func TestExpandShellRunsInWorkspace(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "marker.txt"), []byte("x"), 0o644))

	out := e.Expand(context.Background(), "!`ls marker.txt`", "")
	assert.Equal(t, "marker.txt", out)
}

func TestUnclosedBackticksPassThrough(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "literal !`unclosed", "")
	assert.Equal(t, "literal !`unclosed", out)
}

func TestExpandFileInclusion(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "notes.txt"), []byte("remember this"), 0o644))

	out := e.Expand(context.Background(), "Context: @notes.txt done", "")
	assert.Equal(t, "Context: remember this done", out)
}

func TestExpandMissingFileIsEmpty(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	out := e.Expand(context.Background(), "Context: @no/such/file.txt done", "")
	assert.Equal(t, "Context:  done", out)
}

func TestExpandNonRecursive(t *testing.T) {
	e, workDir := newTestExecutor(t, nil)
	// The included file contains a marker that would be expanded if the
	// output were rescanned; it must survive verbatim.
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "tricky.txt"), []byte("do not run !`echo injected`"), 0o644))

	out := e.Expand(context.Background(), "shell gave: !`cat tricky.txt`", "")
	assert.Equal(t, "shell gave: do not run !`echo injected`", out)
}

func TestInertTemplateExpandsToItself(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	inert := "Review the code in src/ and report issues.\nBe thorough."
	for _, input := range []string{"", "anything", "a b c", "  spaced  "} {
		assert.Equal(t, inert, e.Expand(context.Background(), inert, input))
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	_, err := e.Execute(context.Background(), "innit", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")
	assert.Contains(t, err.Error(), "init")
}

func TestExecuteCarriesMetadata(t *testing.T) {
	cfg := &types.Configuration{
		Command: map[string]types.CommandConfig{
			"review": {Template: "Review $ARGUMENTS", Agent: "plan", Model: "anthropic/claude-sonnet-4"},
		},
	}
	e, _ := newTestExecutor(t, cfg)

	res, err := e.Execute(context.Background(), "review", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "Review main.go", res.Prompt)
	assert.Equal(t, "plan", res.Agent)
	assert.Equal(t, "anthropic/claude-sonnet-4", res.Model)
	assert.Equal(t, "review", res.CommandName)
}

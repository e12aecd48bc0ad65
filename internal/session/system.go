package session

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// basePersona opens every synthesized system message.
const basePersona = "You are a coding assistant. Help the user with code and project analysis. When exploring, use the available tools."

// readOnlyPersona replaces basePersona for agents whose permission set
// forbids writes: it declares the restriction in the same prose.
const readOnlyPersona = "You are a read-only coding assistant. Help the user with code and project analysis. When exploring, use the available tools. Do not make edits to files and do not run destructive commands."

const maxRulesLen = 8000

// systemMessage synthesizes the turn's system message: the persona, the
// workspace path when known, the agent's own prompt fragment, ambient
// environment context (date, platform, git branch, project type), and the
// workspace's custom-rules file if present. The extra sections are appended
// after the persona sentences, never replacing them.
func systemMessage(agent *Agent, workDir string) string {
	var b strings.Builder

	if agent != nil && agent.IsReadOnly() {
		b.WriteString(readOnlyPersona)
	} else {
		b.WriteString(basePersona)
	}
	if workDir != "" {
		b.WriteString(" The user is working in ")
		b.WriteString(workDir)
		b.WriteString(". Resolve relative paths against this directory.")
	}

	if agent != nil && agent.Prompt != "" {
		b.WriteString("\n\n")
		b.WriteString(agent.Prompt)
	}

	b.WriteString("\n\n")
	b.WriteString(environmentContext(workDir))

	if rules := loadAgentRules(workDir); rules != "" {
		b.WriteString("\n\nProject notes:\n")
		b.WriteString(rules)
	}

	return b.String()
}

// environmentContext describes the ambient environment: current date, host
// platform, and the workspace's git branch and project type when they can
// be detected.
func environmentContext(workDir string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today's date is %s. The host platform is %s/%s.",
		time.Now().Format("2006-01-02"), runtime.GOOS, runtime.GOARCH)
	if branch := gitBranch(workDir); branch != "" {
		b.WriteString(" The workspace is on git branch ")
		b.WriteString(branch)
		b.WriteString(".")
	}
	if kind := projectType(workDir); kind != "" {
		b.WriteString(" This looks like a ")
		b.WriteString(kind)
		b.WriteString(" project.")
	}
	return b.String()
}

// gitBranch reads .git/HEAD directly rather than shelling out, so branch
// detection works without git installed. A detached HEAD yields "".
func gitBranch(workDir string) string {
	if workDir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(workDir, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	if branch, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok {
		return branch
	}
	return ""
}

// projectMarkers maps marker files to the project type they indicate,
// checked in order; the first match wins.
var projectMarkers = []struct{ file, kind string }{
	{"go.mod", "Go"},
	{"package.json", "JavaScript/TypeScript"},
	{"Cargo.toml", "Rust"},
	{"pyproject.toml", "Python"},
	{"requirements.txt", "Python"},
	{"pom.xml", "Java"},
	{"Gemfile", "Ruby"},
}

func projectType(workDir string) string {
	if workDir == "" {
		return ""
	}
	for _, m := range projectMarkers {
		if _, err := os.Stat(filepath.Join(workDir, m.file)); err == nil {
			return m.kind
		}
	}
	return ""
}

// loadAgentRules reads the workspace's AGENTS.md, falling back to a legacy
// CLAUDE.md, capped so a huge file can't crowd out the conversation.
func loadAgentRules(workDir string) string {
	if workDir == "" {
		return ""
	}
	for _, name := range []string{"AGENTS.md", "CLAUDE.md"} {
		data, err := os.ReadFile(filepath.Join(workDir, name))
		if err != nil {
			continue
		}
		rules := strings.TrimSpace(string(data))
		if rules == "" {
			continue
		}
		if len(rules) > maxRulesLen {
			rules = rules[:maxRulesLen] + "\n… (truncated)"
		}
		return rules
	}
	return ""
}

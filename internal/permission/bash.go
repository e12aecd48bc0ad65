package permission

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// SplitCommands breaks a compound shell command into the simple commands a
// pattern check runs against, so "go build && rm -rf /" is judged as both
// "go build" and "rm -rf /" rather than as one opaque string. A command
// that fails to parse is returned whole; the check still sees it.
func SplitCommands(command string) []string {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return []string{strings.TrimSpace(command)}
	}

	printer := syntax.NewPrinter()
	var commands []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			var b strings.Builder
			if err := printer.Print(&b, call); err == nil {
				commands = append(commands, strings.TrimSpace(b.String()))
			}
		}
		return true
	})

	if len(commands) == 0 {
		return []string{strings.TrimSpace(command)}
	}
	return commands
}

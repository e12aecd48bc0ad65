// Command opencode is the CLI entry point. All behavior lives in the
// commands package; a command error exits 1.
package main

import (
	"fmt"
	"os"

	"github.com/codeturn-ai/opencode/cmd/opencode/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "opencode:", err)
		os.Exit(1)
	}
}

// Package commands provides the CLI commands for OpenCode.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/logging"
)

// Version and BuildTime are stamped at build time via -ldflags.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

var rootFlags struct {
	printLogs  bool
	logLevel   string
	logFile    bool
	showConfig bool
	model      string
}

var rootCmd = &cobra.Command{
	Use:   "opencode",
	Short: "OpenCode - AI-powered coding assistant",
	Long: `OpenCode is an AI-powered coding assistant that helps you write,
understand, and improve code through natural language interaction.

Run 'opencode tui' for an interactive session, 'opencode run' for a
one-off prompt, or 'opencode serve' to start a headless server.`,
	Version:          Version,
	PersistentPreRun: configureProcess,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// configureProcess sets up logging from the persistent flags and handles
// --show-config before any subcommand runs.
func configureProcess(cmd *cobra.Command, args []string) {
	level := logging.ParseLevel(rootFlags.logLevel)
	if !rootFlags.printLogs && !rootFlags.logFile {
		// Quiet CLI by default: only fatal errors reach stderr.
		level = logging.FatalLevel
	}
	logging.Init(logging.Config{
		Level:     level,
		Output:    os.Stderr,
		Pretty:    rootFlags.printLogs,
		LogToFile: rootFlags.logFile,
	})

	if !rootFlags.showConfig {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "opencode:", err)
		os.Exit(1)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opencode:", err)
		os.Exit(1)
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(data))
	os.Exit(0)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&rootFlags.printLogs, "print-logs", false, "Print logs to stderr")
	flags.StringVar(&rootFlags.logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	flags.BoolVar(&rootFlags.logFile, "log-file", false, "Also write logs to a file under the temp directory")
	flags.BoolVar(&rootFlags.showConfig, "show-config", false, "Print merged configuration as JSON and exit")
	flags.StringVarP(&rootFlags.model, "model", "m", "", "Model to use (provider/model format)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("opencode %s (%s)\n", Version, BuildTime))

	for _, sub := range []*cobra.Command{tuiCmd, initCmd, runCmd, sessionsCmd, configCmd, serveCmd} {
		rootCmd.AddCommand(sub)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// GetGlobalModel returns the global --model flag value.
func GetGlobalModel() string {
	return rootFlags.model
}

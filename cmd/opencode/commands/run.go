package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/codeturn-ai/opencode/internal/command"
	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/headless"
	"github.com/spf13/cobra"
)

var (
	runModel    string
	runAgent    string
	runContinue bool
	runSession  string
	runFormat   string
	runFiles    []string
	runDir      string
	runYolo     bool
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Run a one-off prompt",
	Long: `Run a single prompt through the agent and print the reply.

A message starting with "/" is resolved as a slash command and its template
is expanded against the rest of the input before the turn starts.

Examples:
  opencode run "Fix the bug in main.go"
  opencode run /init
  opencode run --model anthropic/claude-sonnet-4 "Explain this code"
  opencode run --continue "Now add tests"
  opencode run --agent plan "How is retry handled?"`,
	RunE: runOneOff,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "Agent to use (build|plan|general)")
	runCmd.Flags().BoolVarP(&runContinue, "continue", "c", false, "Continue the last session")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to continue")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "Output format (text|json|jsonl)")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "File(s) to attach to message")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
	runCmd.Flags().BoolVar(&runYolo, "auto-approve", false, "Approve every tool permission prompt")
}

func runOneOff(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")
	if message == "" && !runContinue && runSession == "" {
		return fmt.Errorf("message required. Usage: opencode run \"your message\"")
	}

	agentName := runAgent
	model := runModel
	if model == "" {
		model = GetGlobalModel()
	}

	// Resolve a leading slash command through the expander before the turn.
	if strings.HasPrefix(message, "/") {
		appConfig, err := config.Load(workDir)
		if err != nil {
			return err
		}
		name, rest := splitSlashLine(message)
		result, err := command.NewExecutor(workDir, appConfig).Execute(cmd.Context(), name, rest)
		if err != nil {
			return err
		}
		if result.Prompt != "" {
			message = result.Prompt
		}
		if agentName == "" {
			agentName = result.Agent
		}
		if model == "" {
			model = result.Model
		}
	}

	var format headless.OutputFormat
	switch strings.ToLower(runFormat) {
	case "", "text", "default":
		format = headless.OutputText
	case "json":
		format = headless.OutputJSON
	case "jsonl":
		format = headless.OutputJSONL
	default:
		return fmt.Errorf("invalid output format: %s (must be text, json, or jsonl)", runFormat)
	}

	cfg := headless.DefaultConfig()
	cfg.Prompt = message
	cfg.WorkDir = workDir
	cfg.OutputFormat = format
	cfg.SessionID = runSession
	cfg.ContinueLast = runContinue
	cfg.Files = runFiles
	cfg.Model = model
	cfg.Agent = agentName
	cfg.AutoApprove = runYolo

	result, err := headless.NewRunner(cfg).Run(cmd.Context(), os.Stdout)
	if result != nil && result.ExitCode != headless.ExitSuccess {
		os.Exit(int(result.ExitCode))
	}
	return err
}

// splitSlashLine separates "/name rest" into the command name and its
// argument string.
func splitSlashLine(line string) (name, rest string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(line), "/")
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		return trimmed[:idx], strings.TrimSpace(trimmed[idx+1:])
	}
	return trimmed, ""
}

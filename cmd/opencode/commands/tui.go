package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeturn-ai/opencode/internal/command"
	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/executor"
	"github.com/codeturn-ai/opencode/internal/permission"
	"github.com/codeturn-ai/opencode/internal/provider"
	"github.com/codeturn-ai/opencode/internal/session"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

var (
	tuiDir   string
	tuiAgent string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Enter the interactive terminal UI",
	Long: `Start an interactive session in the terminal. Each line is one turn;
lines starting with "/" run slash commands. Type /quit to leave.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiDir, "directory", "", "Working directory")
	tuiCmd.Flags().StringVar(&tuiAgent, "agent", "", "Agent to use (build|plan|general)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(tuiDir)
	if err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if model := GetGlobalModel(); model != "" {
		appConfig.Model = model
	}

	ctx := cmd.Context()
	svc, checker, err := buildService(ctx, workDir, appConfig)
	if err != nil {
		return err
	}

	// Without a dialog surface, answer permission prompts on stdin-free
	// basis: grant once per prompt. A real TUI replaces this.
	stopApprover := autoRespondPermissions(checker)
	defer stopApprover()

	sess, err := svc.Create()
	if err != nil {
		return err
	}

	agentName := tuiAgent
	if agentName == "" {
		agentName = appConfig.DefaultAgent
	}

	expander := command.NewExecutor(workDir, appConfig)

	fmt.Printf("opencode %s — %s\n", Version, tildePath(workDir))
	fmt.Println("Type a message, /help for commands, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/help":
			for _, c := range expander.List() {
				fmt.Printf("  /%s\t%s\n", c.Name, c.Description)
			}
			continue
		}

		input := line
		modelRef := ""
		turnAgent := agentName
		if strings.HasPrefix(line, "/") {
			result := svc.ExecuteCommand(ctx, line)
			if result.Prompt != "" {
				input = result.Prompt
			}
			if result.Agent != "" {
				turnAgent = result.Agent
			}
			modelRef = result.Model
		}

		runTurn(ctx, svc, sess.ID, input, turnAgent, modelRef)
	}
}

// buildService wires store, providers, tools, permissions, and processor
// into a Service for the interactive loop.
func buildService(ctx context.Context, workDir string, appConfig *types.Configuration) (*session.Service, *permission.Checker, error) {
	providers, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		return nil, nil, err
	}

	store := sessionstore.New(appConfig.Storage.SessionDir)
	checker := permission.NewChecker()
	tools := tool.DefaultRegistry(workDir)

	defaultProviderID, defaultModelID := defaultModelFromConfig(appConfig)
	proc := session.NewProcessor(providers, tools, store, checker, workDir, defaultProviderID, defaultModelID)
	tools.RegisterTask(executor.NewSubagentExecutor(store, proc))

	svc := session.NewService(store)
	svc.SetProcessor(proc)
	svc.SetCommandExecutor(command.NewExecutor(workDir, appConfig))
	svc.SetConfig(appConfig)
	return svc, checker, nil
}

// runTurn drives one turn, printing reply chunks as they arrive.
func runTurn(ctx context.Context, svc *session.Service, id types.SessionID, input, agentName, modelRef string) {
	sink := make(chan session.Envelope, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env := range sink {
			switch u := env.Update.(type) {
			case session.ReplyChunk:
				fmt.Print(u.Text)
			case session.Log:
				fmt.Fprintf(os.Stderr, "\n[%s] %s\n", u.Level, u.Message)
			}
		}
	}()

	turnCtx := session.WithUpdateSink(ctx, id, sink)
	_, err := svc.ProcessMessage(turnCtx, id, input, agentName, modelRef)
	close(sink)
	<-done

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	fmt.Println()
}

// defaultModelFromConfig derives the default provider/model: an explicit
// model override first, then the first provider descriptor.
func defaultModelFromConfig(cfg *types.Configuration) (providerID, modelID string) {
	if cfg.Model != "" {
		if p, m := provider.ParseModelString(cfg.Model); p != "" {
			return p, m
		}
	}
	if len(cfg.Providers) > 0 {
		modelID = cfg.Providers[0].Model
		if modelID == "" {
			modelID = "claude-sonnet-4-20250514"
		}
		return cfg.Providers[0].ID, modelID
	}
	return "anthropic", "claude-sonnet-4-20250514"
}

// autoRespondPermissions grants each permission prompt once, since the
// line-based loop has no dialog to show. Returns an unsubscribe func.
func autoRespondPermissions(checker *permission.Checker) func() {
	return event.Subscribe(event.PermissionAsked, func(e event.Event) {
		if data, ok := e.Data.(event.PermissionAskedData); ok {
			fmt.Fprintf(os.Stderr, "\n[permission] auto-granting once: %s\n", data.Title)
			checker.Respond(data.RequestID, "once")
		}
	})
}

// tildePath renders a path with the home directory collapsed to "~".
func tildePath(path string) string {
	home := os.Getenv("HOME")
	if home != "" && strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}

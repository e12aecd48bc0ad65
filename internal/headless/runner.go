package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/executor"
	"github.com/codeturn-ai/opencode/internal/permission"
	"github.com/codeturn-ai/opencode/internal/provider"
	"github.com/codeturn-ai/opencode/internal/session"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// Runner executes one prompt to completion.
type Runner struct {
	cfg *Config

	store   *sessionstore.Store
	proc    *session.Processor
	checker *permission.Checker
	agent   *session.Agent
}

// NewRunner creates a runner for one config.
func NewRunner(cfg *Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run builds the engine, resolves the session, runs the turn, and prints
// it in the configured format.
func (r *Runner) Run(ctx context.Context, out io.Writer) (*Result, error) {
	start := time.Now()
	printer := NewPrinter(out, r.cfg.OutputFormat, r.cfg.Quiet)

	fail := func(status string, code ExitCode, err error) (*Result, error) {
		result := &Result{Status: status, Error: err.Error(), DurationMS: time.Since(start).Milliseconds(), ExitCode: code}
		printer.Finish(result)
		return result, err
	}

	prompt, err := r.buildPrompt()
	if err != nil {
		return fail("error", ExitInvalidInput, err)
	}

	if err := r.initialize(ctx); err != nil {
		return fail("error", ExitError, err)
	}

	if r.cfg.AutoApprove {
		approver := startAutoApprover(r.checker)
		defer approver.stop()
	}

	sessionID, err := r.resolveSession()
	if err != nil {
		return fail("error", ExitSessionNotFound, err)
	}

	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	// Drain the update sink through the printer while the turn runs.
	sink := make(chan session.Envelope, 256)
	var drained sync.WaitGroup
	drained.Add(1)
	go func() {
		defer drained.Done()
		for env := range sink {
			printer.Handle(env)
		}
	}()

	runCtx = session.WithUpdateSink(runCtx, sessionID, sink)
	final, err := r.proc.Process(runCtx, sessionID, prompt, r.agent, r.cfg.Model)
	close(sink)
	drained.Wait()

	result := &Result{
		SessionID:    sessionID.String(),
		FinalMessage: final,
		DurationMS:   time.Since(start).Milliseconds(),
	}
	switch {
	case err == nil:
		result.Status, result.ExitCode = "success", ExitSuccess
	case errors.Is(err, context.DeadlineExceeded):
		result.Status, result.ExitCode, result.Error = "timeout", ExitTimeout, err.Error()
	case permission.IsRejectedError(err):
		result.Status, result.ExitCode, result.Error = "permission_denied", ExitPermissionDenied, err.Error()
	default:
		result.Status, result.ExitCode, result.Error = "error", ExitError, err.Error()
	}

	printer.Finish(result)
	return result, err
}

// buildPrompt assembles the prompt from the config and any attached files.
func (r *Runner) buildPrompt() (string, error) {
	prompt := strings.TrimSpace(r.cfg.Prompt)
	if prompt == "" && r.cfg.SessionID == "" && !r.cfg.ContinueLast {
		return "", fmt.Errorf("prompt is required")
	}

	var attachments strings.Builder
	for _, file := range r.cfg.Files {
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read attachment %s: %w", file, err)
		}
		fmt.Fprintf(&attachments, "\n\n--- File: %s ---\n%s", file, content)
	}
	return prompt + attachments.String(), nil
}

// initialize loads configuration and wires the engine.
func (r *Runner) initialize(ctx context.Context) error {
	appConfig, err := config.Load(r.cfg.WorkDir)
	if err != nil {
		return err
	}
	if r.cfg.Model == "" {
		r.cfg.Model = appConfig.Model
	}
	if r.cfg.Agent == "" {
		r.cfg.Agent = appConfig.DefaultAgent
	}

	providers, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		return err
	}

	defaultProviderID, defaultModelID := defaultModelFor(appConfig)
	r.store = sessionstore.New(appConfig.Storage.SessionDir)
	r.checker = permission.NewChecker()

	tools := tool.DefaultRegistry(r.cfg.WorkDir)
	r.proc = session.NewProcessor(providers, tools, r.store, r.checker, r.cfg.WorkDir, defaultProviderID, defaultModelID)
	tools.RegisterTask(executor.NewSubagentExecutor(r.store, r.proc))

	// Per-agent turn limits come from the workspace config.
	r.agent = session.AgentByName(r.cfg.Agent)
	session.ApplyConfigLimits(r.agent, appConfig)

	return nil
}

// defaultModelFor derives the default provider/model from the config: an
// explicit model override first, then the first provider descriptor (the
// ordered-list convention for "default").
func defaultModelFor(cfg *types.Configuration) (providerID, modelID string) {
	if cfg.Model != "" {
		if p, m := provider.ParseModelString(cfg.Model); p != "" {
			return p, m
		}
	}
	if len(cfg.Providers) > 0 {
		desc := cfg.Providers[0]
		modelID = desc.Model
		if modelID == "" {
			modelID = "claude-sonnet-4-20250514"
		}
		return desc.ID, modelID
	}
	return "anthropic", "claude-sonnet-4-20250514"
}

// resolveSession picks the session the turn runs in: a named one, the most
// recent one, or a fresh one.
func (r *Runner) resolveSession() (types.SessionID, error) {
	if r.cfg.SessionID != "" {
		id, err := types.ParseSessionID(r.cfg.SessionID)
		if err != nil {
			return types.SessionID{}, fmt.Errorf("bad session id %q: %w", r.cfg.SessionID, err)
		}
		if _, err := r.store.Load(id); err != nil {
			return types.SessionID{}, fmt.Errorf("session not found: %s", r.cfg.SessionID)
		}
		return id, nil
	}

	if r.cfg.ContinueLast {
		listings, err := r.store.List()
		if err != nil {
			return types.SessionID{}, err
		}
		if len(listings) > 0 {
			return listings[0].ID, nil
		}
	}

	sess := types.NewSession()
	if err := r.store.Save(sess); err != nil {
		return types.SessionID{}, err
	}
	return sess.ID, nil
}

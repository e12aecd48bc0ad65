package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/codeturn-ai/opencode/internal/command"
	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/sharing"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// Service is the embedding surface over the store and the processor: what
// the CLI, the interactive loop, and the HTTP API all talk to.
type Service struct {
	store    *sessionstore.Store
	proc     *Processor
	commands *command.Executor
	shares   *sharing.Manager
	cfg      *types.Configuration
}

// NewService creates a service over a store.
func NewService(store *sessionstore.Store) *Service {
	return &Service{store: store, shares: sharing.NewManager("")}
}

// SetProcessor attaches the turn engine.
func (s *Service) SetProcessor(p *Processor) { s.proc = p }

// Processor returns the attached turn engine, if any.
func (s *Service) Processor() *Processor { return s.proc }

// SetCommandExecutor attaches the slash-command expander.
func (s *Service) SetCommandExecutor(e *command.Executor) { s.commands = e }

// SetConfig attaches the workspace configuration whose turn limits apply
// to agents built per message.
func (s *Service) SetConfig(cfg *types.Configuration) { s.cfg = cfg }

// Create makes and persists a fresh session.
func (s *Service) Create() (*types.Session, error) {
	sess := types.NewSession()
	if err := s.store.Save(sess); err != nil {
		return nil, err
	}
	event.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionData{SessionID: sess.ID}})
	return sess, nil
}

// Get loads a session.
func (s *Service) Get(id types.SessionID) (*types.Session, error) {
	return s.store.Load(id)
}

// List lists stored sessions, newest first.
func (s *Service) List() ([]sessionstore.Listing, error) {
	return s.store.List()
}

// Delete removes a session; deleting an absent one is a no-op.
func (s *Service) Delete(id types.SessionID) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.shares.Unshare(id)
	event.Publish(event.Event{Type: event.SessionDeleted, Data: event.SessionData{SessionID: id}})
	return nil
}

// ProcessMessage runs one turn and returns the assistant's final content.
// The update sink bound to ctx is the source of truth for the UI; the
// return value is informational.
func (s *Service) ProcessMessage(ctx context.Context, id types.SessionID, input, agentName, modelRef string) (string, error) {
	if s.proc == nil {
		return "", fmt.Errorf("no processor configured")
	}
	if agentName == "" && s.cfg != nil {
		agentName = s.cfg.DefaultAgent
	}
	agent := AgentByName(agentName)
	ApplyConfigLimits(agent, s.cfg)
	return s.proc.Process(ctx, id, input, agent, modelRef)
}

// Abort cancels the session's running turn.
func (s *Service) Abort(id types.SessionID) error {
	if s.proc == nil {
		return fmt.Errorf("no processor configured")
	}
	return s.proc.Abort(id)
}

// ExecuteCommand resolves and expands a "/name args" line. An unknown
// command degrades to the raw line as the prompt rather than failing the
// turn.
func (s *Service) ExecuteCommand(ctx context.Context, cmdLine string) *command.ExecuteResult {
	name, args := splitCommandLine(cmdLine)
	if s.commands != nil {
		if result, err := s.commands.Execute(ctx, name, args); err == nil {
			return result
		}
	}
	return &command.ExecuteResult{Prompt: cmdLine, CommandName: name}
}

// splitCommandLine separates a "/name rest of line" slash-command input
// into its command name and argument string.
func splitCommandLine(cmdLine string) (name, args string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(cmdLine), "/")
	idx := strings.IndexFunc(trimmed, unicode.IsSpace)
	if idx < 0 {
		return trimmed, ""
	}
	return trimmed[:idx], strings.TrimSpace(trimmed[idx+1:])
}

// RunShell runs a shell command through the registered bash tool, under
// the same workspace it gives model-issued calls.
func (s *Service) RunShell(ctx context.Context, id types.SessionID, shellCmd string) (string, error) {
	if s.proc == nil || s.proc.ToolRegistry() == nil {
		return "", fmt.Errorf("shell execution unavailable: no tool registry configured")
	}
	bash, ok := s.proc.ToolRegistry().Get("bash")
	if !ok {
		return "", fmt.Errorf("shell execution unavailable: bash tool not registered")
	}

	input, err := json.Marshal(map[string]string{"command": shellCmd})
	if err != nil {
		return "", err
	}
	result, err := bash.Execute(ctx, input, &tool.Context{SessionID: id.String()})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// RespondPermission delivers the user's decision for a pending permission
// request.
func (s *Service) RespondPermission(requestID, answer string) error {
	if s.proc == nil || s.proc.PermissionChecker() == nil {
		return fmt.Errorf("no permission checker configured")
	}
	s.proc.PermissionChecker().Respond(requestID, answer)
	return nil
}

// Share returns the session's share URL, issuing a token on first use.
func (s *Service) Share(id types.SessionID) (string, error) {
	if _, err := s.store.Load(id); err != nil {
		return "", err
	}
	return s.shares.Share(id)
}

// Unshare revokes the session's share token.
func (s *Service) Unshare(id types.SessionID) {
	s.shares.Unshare(id)
}

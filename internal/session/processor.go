// Package session is the agent turn engine: it takes one user input,
// drives the model (optionally through tool calls), streams updates to the
// UI, and appends the turn's messages to the session document.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeturn-ai/opencode/internal/permission"
	"github.com/codeturn-ai/opencode/internal/provider"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// Processor runs turns. At most one turn runs per session at a time; turns
// for different sessions run in parallel.
type Processor struct {
	providers   *provider.Registry
	tools       *tool.Registry
	store       *sessionstore.Store
	permissions *permission.Checker
	workDir     string

	defaultProviderID string
	defaultModelID    string

	mu     sync.Mutex
	active map[types.SessionID]*activeTurn
}

type activeTurn struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcessor wires a processor. workDir is the workspace the tools and
// system message resolve paths against.
func NewProcessor(
	providers *provider.Registry,
	tools *tool.Registry,
	store *sessionstore.Store,
	permissions *permission.Checker,
	workDir string,
	defaultProviderID string,
	defaultModelID string,
) *Processor {
	return &Processor{
		providers:         providers,
		tools:             tools,
		store:             store,
		permissions:       permissions,
		workDir:           workDir,
		defaultProviderID: defaultProviderID,
		defaultModelID:    defaultModelID,
		active:            make(map[types.SessionID]*activeTurn),
	}
}

// ToolRegistry returns the registry backing this processor.
func (p *Processor) ToolRegistry() *tool.Registry { return p.tools }

// PermissionChecker returns the checker backing this processor.
func (p *Processor) PermissionChecker() *permission.Checker { return p.permissions }

// Process runs one turn: the user input against the named agent, in the
// session identified by id. It returns the assistant's final content; the
// update sink bound to ctx (if any) is the source of truth for the UI.
// modelRef optionally overrides the model as "provider/model".
func (p *Processor) Process(ctx context.Context, id types.SessionID, input string, agent *Agent, modelRef string) (string, error) {
	if err := p.acquire(ctx, id); err != nil {
		return "", err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.active[id].cancel = cancel
	p.mu.Unlock()

	defer p.release(id)
	defer cancel()

	// A turn always ends with exactly one ReplyDone, win or lose, so a
	// consumer reading the update sink never waits past a failed turn.
	defer emitFinal(turnCtx, ReplyDone{})

	return p.runTurn(turnCtx, id, input, agent, modelRef)
}

// acquire blocks until no other turn is running for the session, then
// claims it.
func (p *Processor) acquire(ctx context.Context, id types.SessionID) error {
	for {
		p.mu.Lock()
		current, busy := p.active[id]
		if !busy {
			p.active[id] = &activeTurn{done: make(chan struct{})}
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		select {
		case <-current.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Processor) release(id types.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if turn, ok := p.active[id]; ok {
		close(turn.done)
		delete(p.active, id)
	}
}

// Abort cancels the session's running turn, if any. In-flight tool
// executions finish on their own; the turn stops at its next suspension
// point.
func (p *Processor) Abort(id types.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	turn, ok := p.active[id]
	if !ok || turn.cancel == nil {
		return fmt.Errorf("session not processing: %s", id)
	}
	turn.cancel()
	return nil
}

// IsProcessing reports whether the session has a turn in flight.
func (p *Processor) IsProcessing(id types.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[id]
	return ok
}

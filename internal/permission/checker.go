package permission

import (
	"context"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"

	"github.com/codeturn-ai/opencode/internal/event"
)

// Rule maps a doublestar pattern to an action. Rules configured on the
// checker take precedence over the caller's per-agent default, so a
// workspace can pre-approve "go test*" or hard-deny "rm*" regardless of
// agent policy.
type Rule struct {
	Pattern string
	Action  Action
}

type sessionMemo struct {
	types    map[Type]bool
	patterns map[string]bool
}

// Checker answers permission requests. Ask publishes a permission event
// and blocks until Respond delivers the user's decision.
type Checker struct {
	mu      sync.Mutex
	rules   map[Type][]Rule
	memo    map[string]*sessionMemo // keyed by session id
	pending map[string]chan string  // request id -> decision
}

// NewChecker creates a checker with no rules and nothing memoized.
func NewChecker() *Checker {
	return &Checker{
		rules:   make(map[Type][]Rule),
		memo:    make(map[string]*sessionMemo),
		pending: make(map[string]chan string),
	}
}

// AddRule registers a configured pattern rule for a category.
func (c *Checker) AddRule(t Type, pattern string, action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[t] = append(c.rules[t], Rule{Pattern: pattern, Action: action})
}

// Check decides a request under the given default action. A configured
// rule matching every pattern of the request overrides the default; an
// earlier "always" answer for the same patterns short-circuits an ask.
func (c *Checker) Check(ctx context.Context, req Request, action Action) error {
	if ruled, ok := c.ruleAction(req); ok {
		action = ruled
	}

	switch action {
	case Allow:
		return nil
	case Deny:
		return &RejectedError{SessionID: req.SessionID, Type: req.Type, CallID: req.CallID, Message: "denied by policy"}
	default:
		return c.Ask(ctx, req)
	}
}

func (c *Checker) ruleAction(req Request) (Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rules := c.rules[req.Type]
	if len(rules) == 0 || len(req.Patterns) == 0 {
		return "", false
	}

	// Every pattern of the request must match the same-action rule set;
	// one denied sub-command denies the compound command.
	for _, p := range req.Patterns {
		matched := false
		for _, r := range rules {
			pattern, value := r.Pattern, p
			if req.Type == TypeBash {
				// A command line is not a path: let '*' span '/' so
				// "go test*" covers "go test ./...".
				pattern = strings.ReplaceAll(pattern, "/", "\x00")
				value = strings.ReplaceAll(value, "/", "\x00")
			}
			if ok, _ := doublestar.Match(pattern, value); ok {
				if r.Action == Deny {
					return Deny, true
				}
				matched = matched || r.Action == Allow
			}
		}
		if !matched {
			return "", false
		}
	}
	return Allow, true
}

// Ask publishes a permission-required event and blocks until Respond (or
// context cancellation). "once" and "always" grant; "always" additionally
// memoizes the request's patterns for the session.
func (c *Checker) Ask(ctx context.Context, req Request) error {
	if c.approved(req) {
		return nil
	}

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}
	decision := make(chan string, 1)

	c.mu.Lock()
	c.pending[req.ID] = decision
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.PermissionAsked,
		Data: event.PermissionAskedData{
			RequestID:  req.ID,
			SessionID:  req.SessionID,
			Permission: string(req.Type),
			Patterns:   req.Patterns,
			Title:      req.Title,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case answer := <-decision:
		switch answer {
		case "always":
			c.memoize(req)
			return nil
		case "once":
			return nil
		default:
			return &RejectedError{SessionID: req.SessionID, Type: req.Type, CallID: req.CallID, Message: "rejected by user"}
		}
	}
}

// Respond delivers the user's decision for a pending request: "once",
// "always", or "reject". Unknown request ids are ignored.
func (c *Checker) Respond(requestID, answer string) {
	c.mu.Lock()
	decision, ok := c.pending[requestID]
	c.mu.Unlock()
	if ok {
		decision <- answer
	}

	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{RequestID: requestID, Granted: answer != "reject"},
	})
}

func (c *Checker) approved(req Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	memo, ok := c.memo[req.SessionID]
	if !ok {
		return false
	}
	if memo.types[req.Type] && len(req.Patterns) == 0 {
		return true
	}
	if len(req.Patterns) == 0 {
		return false
	}
	for _, p := range req.Patterns {
		if !memo.patterns[p] {
			return false
		}
	}
	return true
}

func (c *Checker) memoize(req Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	memo, ok := c.memo[req.SessionID]
	if !ok {
		memo = &sessionMemo{types: make(map[Type]bool), patterns: make(map[string]bool)}
		c.memo[req.SessionID] = memo
	}
	if len(req.Patterns) == 0 {
		memo.types[req.Type] = true
	}
	for _, p := range req.Patterns {
		memo.patterns[p] = true
	}
}

// ClearSession drops everything memoized for a session.
func (c *Checker) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.memo, sessionID)
}

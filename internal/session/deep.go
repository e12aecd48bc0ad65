package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/permission"
	"github.com/codeturn-ai/opencode/internal/provider"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// deepTurn wraps a tool-calling loop around the provider's LLM handle. The
// final reply is chunked and emitted at the end; tool outcomes (and any
// summary record the compaction middleware produced) come back as messages
// the session persists between the user and assistant entries.
func (p *Processor) deepTurn(
	ctx context.Context,
	sess *types.Session,
	input string,
	agent *Agent,
	handle model.ToolCallingChatModel,
	infos []*schema.ToolInfo,
	mdl *types.Model,
) (string, []types.Message, error) {
	bound, err := handle.WithTools(infos)
	if err != nil {
		return "", nil, fmt.Errorf("bind tools: %w", err)
	}

	msgs := p.requestMessages(sess, agent, input)
	options := []model.Option{model.WithMaxTokens(mdl.MaxOutputTokens)}
	if agent.Temperature > 0 {
		options = append(options, model.WithTemperature(float32(agent.Temperature)))
	}

	maxIterations := agent.MaxSteps
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	var (
		turnMsgs    []types.Message
		lastContent string
		repeats     = make(map[string]int)
	)

	for step := 0; step < maxIterations; step++ {
		if ctx.Err() != nil {
			return lastContent, turnMsgs, ctx.Err()
		}

		var summary string
		msgs, summary = p.maybeSummarize(ctx, bound, msgs)
		if summary != "" {
			// The compaction is recorded on the session as a flagged
			// message, so an export shows what replaced the dropped
			// context and title derivation knows to skip it.
			sm := types.NewMessage(types.RoleAssistant, summary)
			sm.Meta = &types.MessageMeta{Summary: true}
			turnMsgs = append(turnMsgs, sm)
		}

		resp, err := p.generateBound(ctx, bound, msgs, options)
		if err != nil {
			return lastContent, turnMsgs, err
		}
		if resp.Content != "" {
			lastContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			return provider.StripThinkBlock(resp.Content), turnMsgs, nil
		}

		msgs = append(msgs, resp)
		for _, call := range resp.ToolCalls {
			outcome, callErr := p.dispatchTool(ctx, sess.ID, agent, call, repeats)

			content := outcome
			if callErr != nil {
				// The failure goes back to the model as a tool result so
				// it can recover; it never aborts the loop.
				content = "Error: " + callErr.Error()
			}
			msgs = append(msgs, &schema.Message{Role: schema.Tool, Content: content, ToolCallID: call.ID})

			tm := types.NewMessage(types.RoleTool, content)
			tm.Meta = &types.MessageMeta{ToolName: call.Function.Name, ToolCallID: call.ID}
			turnMsgs = append(turnMsgs, tm)
		}
	}

	// Iteration limit exhausted: use the last content even though the
	// model still intended further tool use.
	emitLog(ctx, "warn", fmt.Sprintf("iteration limit (%d) reached", maxIterations))
	return provider.StripThinkBlock(lastContent), turnMsgs, nil
}

// generateBound runs one tool-aware LLM call with retry.
func (p *Processor) generateBound(ctx context.Context, bound model.ToolCallingChatModel, msgs []*schema.Message, options []model.Option) (*schema.Message, error) {
	resp, err := p.generateWithRetry(ctx, func() (*provider.Response, error) {
		out, err := bound.Generate(ctx, msgs, options...)
		if err != nil {
			return nil, err
		}
		return &provider.Response{Content: out.Content, Usage: out}, nil
	})
	if err != nil {
		return nil, err
	}
	msg, _ := resp.Usage.(*schema.Message)
	if msg == nil {
		msg = &schema.Message{Role: schema.Assistant, Content: resp.Content}
	}
	return msg, nil
}

// dispatchTool normalizes, gates, and executes one proposed tool call,
// reporting it on the log feed either way.
func (p *Processor) dispatchTool(ctx context.Context, sessionID types.SessionID, agent *Agent, call schema.ToolCall, repeats map[string]int) (string, error) {
	name := call.Function.Name
	raw := normalizeCallArgs(call.Function.Arguments)

	// The capability mask is enforced at dispatch, not just in the
	// schemas sent to the model: a model may propose a tool it was never
	// offered, and a read-only agent must not run it.
	if !agent.ToolEnabled(name) {
		return p.failToolCall(ctx, sessionID, name, raw, fmt.Errorf("Tool not available: %s", name))
	}

	t, ok := p.tools.Get(name)
	if !ok {
		return p.failToolCall(ctx, sessionID, name, raw, fmt.Errorf("Tool not found: %s", name))
	}

	if normalizer, ok := t.(tool.ArgNormalizer); ok {
		if normalized := normalizer.NormalizeArgs(raw, p.workDir); string(normalized) != string(raw) {
			emitLog(ctx, "info", "normalized input for "+name)
			raw = normalized
		}
	}

	if err := p.gateToolCall(ctx, sessionID, agent, name, raw, repeats); err != nil {
		return p.failToolCall(ctx, sessionID, name, raw, err)
	}

	result, err := t.Execute(ctx, raw, &tool.Context{
		SessionID: sessionID.String(),
		CallID:    call.ID,
		Agent:     agent.Name,
		WorkDir:   p.workDir,
	})
	if err != nil {
		return p.failToolCall(ctx, sessionID, name, raw, err)
	}

	outputLen := len(result.Output)
	event.Publish(event.Event{
		Type: event.ToolCall,
		Data: event.ToolCallData{
			SessionID: sessionID,
			Event: types.ToolCallEvent{
				ToolID:       name,
				InputPreview: types.PreviewInput(string(raw)),
				OutputLen:    &outputLen,
			},
		},
	})
	emitLog(ctx, "info", fmt.Sprintf("tool %s ok input=%s output_len=%d", name, types.PreviewInput(string(raw)), outputLen))

	return result.Output, nil
}

// failToolCall records a failed invocation on the log feed and returns the
// error for re-injection into the model's context.
func (p *Processor) failToolCall(ctx context.Context, sessionID types.SessionID, name string, raw json.RawMessage, err error) (string, error) {
	event.Publish(event.Event{
		Type: event.ToolCall,
		Data: event.ToolCallData{
			SessionID: sessionID,
			Event: types.ToolCallEvent{
				ToolID:       name,
				InputPreview: types.PreviewInput(string(raw)),
				Error:        err.Error(),
			},
		},
	})
	emitLog(ctx, "error", fmt.Sprintf("%s: %s", name, err))
	return "", err
}

// normalizeCallArgs turns the model's argument text into JSON a tool can
// consume: valid JSON passes through, anything else is wrapped as a JSON
// string for the tool's own normalizer to interpret.
func normalizeCallArgs(arguments string) json.RawMessage {
	raw := json.RawMessage(arguments)
	if arguments == "" {
		return json.RawMessage("{}")
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(arguments)
	if err != nil {
		return json.RawMessage("{}")
	}
	return quoted
}

const doomLoopThreshold = 3

// gateToolCall applies the permission policy and the repeated-call guard.
func (p *Processor) gateToolCall(ctx context.Context, sessionID types.SessionID, agent *Agent, name string, raw json.RawMessage, repeats map[string]int) error {
	if p.permissions == nil {
		return nil
	}

	var args struct {
		Command  string `json:"command"`
		FilePath string `json:"filePath"`
		URL      string `json:"url"`
	}
	_ = json.Unmarshal(raw, &args)

	switch name {
	case "bash":
		req := permission.Request{
			Type:      permission.TypeBash,
			Patterns:  permission.SplitCommands(args.Command),
			SessionID: sessionID.String(),
			Title:     "Run shell command?",
		}
		if err := p.permissions.Check(ctx, req, permission.ParseAction(agent.Permission.Bash)); err != nil {
			return err
		}
	case "write", "edit":
		req := permission.Request{
			Type:      permission.TypeEdit,
			Patterns:  []string{args.FilePath},
			SessionID: sessionID.String(),
			Title:     "Modify " + args.FilePath + "?",
		}
		if err := p.permissions.Check(ctx, req, permission.ParseAction(agent.Permission.Write)); err != nil {
			return err
		}
	case "webfetch":
		req := permission.Request{
			Type:      permission.TypeWebFetch,
			Patterns:  []string{args.URL},
			SessionID: sessionID.String(),
			Title:     "Fetch " + args.URL + "?",
		}
		if err := p.permissions.Check(ctx, req, permission.ParseAction(agent.Permission.WebFetch)); err != nil {
			return err
		}
	}

	// Identical call repeated within one turn: the third occurrence needs
	// explicit approval even under an allow policy.
	key := name + "\x00" + string(raw)
	repeats[key]++
	if repeats[key] >= doomLoopThreshold {
		switch permission.ParseAction(agent.Permission.DoomLoop) {
		case permission.Deny:
			return fmt.Errorf("repeated identical %s call blocked", name)
		case permission.Allow, permission.Ask:
			return p.permissions.Ask(ctx, permission.Request{
				Type:      permission.TypeDoomLoop,
				Patterns:  []string{name},
				SessionID: sessionID.String(),
				Title:     fmt.Sprintf("Allow repeated %s call?", name),
			})
		}
	}
	return nil
}

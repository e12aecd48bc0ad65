package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/codeturn-ai/opencode/internal/logging"
	"github.com/codeturn-ai/opencode/internal/provider"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/internal/tool"
	"github.com/codeturn-ai/opencode/pkg/types"
)

const defaultMaxIterations = 50

// runTurn loads the session, picks the deep or plain path, runs it, and
// persists the turn's messages. Configuration failures abort before the
// session is touched; provider failures mid-turn still append the partial
// reply so the user can see where it stopped.
func (p *Processor) runTurn(ctx context.Context, id types.SessionID, input string, agent *Agent, modelRef string) (string, error) {
	if agent == nil {
		agent = DefaultAgent()
	}

	sess, err := p.store.Load(id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		sess = types.NewSessionWithID(id)
	} else if err != nil {
		emitReplyChunks(ctx, "Error: cannot load session: "+err.Error())
		return "", err
	}

	providerID, modelID := p.resolveModel(modelRef)
	prov, err := p.providers.Get(providerID)
	if err != nil {
		// The registry only registers providers whose descriptor carried a
		// usable API key, so a lookup miss means the key is missing, not
		// that the id is unknown.
		msg := fmt.Sprintf("Error: API key for provider %q is not configured (%s)", providerID, err)
		emitReplyChunks(ctx, msg)
		return "", fmt.Errorf("provider %s missing API key: %w", providerID, err)
	}

	model, err := p.providers.GetModel(providerID, modelID)
	if err != nil {
		msg := fmt.Sprintf("Error: %s is not configured (%s)", providerID, err)
		emitReplyChunks(ctx, msg)
		return "", err
	}

	infos := p.toolSchemas(agent)
	handle, hasHandle := prov.LLMHandle()

	var (
		final    string
		turnMsgs []types.Message
		turnErr  error
	)
	deepAgent := agent.Name == "build" || agent.Name == "plan" || agent.Name == "general"
	if deepAgent && len(infos) > 0 && hasHandle {
		final, turnMsgs, turnErr = p.deepTurn(ctx, sess, input, agent, handle, infos, model)
		if turnErr == nil {
			// The deep path emits at the end: the final content split on
			// line boundaries into small chunks, paced so the UI animates.
			emitReplyChunks(ctx, final)
		}
	} else {
		final, turnErr = p.plainTurn(ctx, sess, input, agent, prov, model)
	}

	content := final
	if turnErr != nil {
		content = appendErrorSuffix(final, turnErr)
		emitLog(ctx, "error", turnErr.Error())
		emitReplyChunks(ctx, errorChunk(final, turnErr))
	}

	sess.PushMessage(types.NewMessage(types.RoleUser, input))
	for _, tm := range turnMsgs {
		sess.PushMessage(tm)
	}
	sess.PushMessage(types.NewMessage(types.RoleAssistant, content))

	if saveErr := p.store.Save(sess); saveErr != nil {
		// The user has already seen the reply; losing the save is a
		// warning, not a turn failure.
		logging.Warn().Str("session", id.String()).Err(saveErr).Msg("session save failed")
		emitLog(ctx, "warn", "session save failed: "+saveErr.Error())
	}

	return content, turnErr
}

// resolveModel picks the provider and model for a turn: an explicit
// "provider/model" override first, then the processor defaults.
func (p *Processor) resolveModel(modelRef string) (providerID, modelID string) {
	providerID, modelID = p.defaultProviderID, p.defaultModelID
	if modelRef != "" {
		refProvider, refModel := provider.ParseModelString(modelRef)
		if refProvider != "" {
			providerID = refProvider
		}
		if refModel != "" {
			modelID = refModel
		}
	}
	return providerID, modelID
}

// toolSchemas returns the schemas for every tool the agent may call.
func (p *Processor) toolSchemas(agent *Agent) []*schema.ToolInfo {
	if p.tools == nil {
		return nil
	}
	var infos []*schema.ToolInfo
	for _, t := range p.tools.List() {
		if agent.ToolEnabled(t.ID()) {
			infos = append(infos, tool.SchemaInfo(t))
		}
	}
	return infos
}

// plainTurn is a single model call without tool interleaving: stream if
// the provider can, fall back to one-shot generation if it can't.
func (p *Processor) plainTurn(ctx context.Context, sess *types.Session, input string, agent *Agent, prov provider.Provider, model *types.Model) (string, error) {
	req := &provider.Request{
		Model:       model.ID,
		Messages:    p.requestMessages(sess, agent, input),
		Temperature: float32(agent.Temperature),
		MaxTokens:   model.MaxOutputTokens,
	}

	reader, err := prov.Stream(ctx, req)
	if err != nil {
		if !errors.Is(err, provider.ErrStreamingUnsupported) {
			// One fallback attempt through generate before giving up.
			emitLog(ctx, "warn", "stream failed, falling back to generate: "+err.Error())
		}
		resp, genErr := p.generateWithRetry(ctx, func() (*provider.Response, error) {
			return prov.Generate(ctx, req)
		})
		if genErr != nil {
			return "", genErr
		}
		emitUpdate(ctx, ReplyChunk{Text: resp.Content})
		return resp.Content, nil
	}
	defer reader.Close()

	var b strings.Builder
	for {
		msg, err := reader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.String(), err
		}
		if msg.Content != "" {
			b.WriteString(msg.Content)
			emitUpdate(ctx, ReplyChunk{Text: msg.Content})
		}
	}

	// Chunks stream through verbatim; a reasoning preamble is stripped
	// only from the content that gets persisted.
	return provider.StripThinkBlock(b.String()), nil
}

// generateWithRetry wraps an LLM call in exponential backoff with jitter.
func (p *Processor) generateWithRetry(ctx context.Context, call func() (*provider.Response, error)) (*provider.Response, error) {
	b := newRetryBackoff(ctx)
	for {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return nil, err
		}
		emitLog(ctx, "warn", "model call failed, retrying: "+err.Error())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// errorChunk renders a turn failure for the reply stream.
func errorChunk(partial string, err error) string {
	if partial == "" {
		return "Error: " + err.Error()
	}
	return "\n\nError: " + err.Error()
}

// appendErrorSuffix marks a partial reply as partial in the persisted
// message.
func appendErrorSuffix(partial string, err error) string {
	if partial == "" {
		return "Error: " + err.Error()
	}
	return partial + "\n\nError: " + err.Error()
}

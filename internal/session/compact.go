package session

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// summarizeMessageThreshold and summarizeTokenThreshold decide when
	// the middleware compresses the model context.
	summarizeMessageThreshold = 50
	summarizeTokenThreshold   = 4000

	// summarizeKeepRecent messages stay verbatim behind the summary.
	summarizeKeepRecent = 10
)

const summarizePrompt = `Summarize the conversation so far for your own later use. Keep decisions made, files read or changed, commands run, and open questions. Be brief; drop pleasantries.`

// maybeSummarize compresses the model context behind the loop once it
// grows past the thresholds: everything between the system message and the
// last few messages is replaced by a single summary produced with the same
// LLM handle. The second return value is the summary's full content when a
// compaction happened, so the turn can record it on the session as a
// summary-flagged message (an append, keeping messages append-only; title
// derivation skips the flag).
func (p *Processor) maybeSummarize(ctx context.Context, bound model.ToolCallingChatModel, msgs []*schema.Message) ([]*schema.Message, string) {
	if len(msgs) < summarizeMessageThreshold && estimateTokens(msgs) < summarizeTokenThreshold {
		return msgs, ""
	}
	if len(msgs) <= summarizeKeepRecent+2 {
		return msgs, ""
	}

	head := msgs[1 : len(msgs)-summarizeKeepRecent]
	var transcript strings.Builder
	for _, m := range head {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	summary, err := bound.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: summarizePrompt},
		{Role: schema.User, Content: transcript.String()},
	})
	if err != nil {
		emitLog(ctx, "warn", "history summarization failed: "+err.Error())
		return msgs, ""
	}
	content := "Summary of the earlier conversation:\n" + summary.Content

	compressed := make([]*schema.Message, 0, summarizeKeepRecent+2)
	compressed = append(compressed, msgs[0])
	compressed = append(compressed, &schema.Message{Role: schema.Assistant, Content: content})
	compressed = append(compressed, msgs[len(msgs)-summarizeKeepRecent:]...)

	emitLog(ctx, "info", "summarized conversation context")
	return compressed, content
}

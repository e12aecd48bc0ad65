package session

import (
	"github.com/cloudwego/eino/schema"

	"github.com/codeturn-ai/opencode/pkg/types"
)

// requestMessages builds the wire message list for a turn: the system
// message first (the session's own leading system message if it has one,
// a synthesized one otherwise), then history, then the new user input —
// which is part of the request but not yet of the session. Stored tool
// messages map to user messages with a bracketed prefix, so history
// survives providers whose wire role set is just {system, user, assistant}.
func (p *Processor) requestMessages(sess *types.Session, agent *Agent, input string) []*schema.Message {
	system := systemMessage(agent, p.workDir)
	history := sess.Messages
	if len(history) > 0 && history[0].Role == types.RoleSystem {
		system = history[0].Content
		history = history[1:]
	}

	msgs := []*schema.Message{{Role: schema.System, Content: system}}
	for _, m := range history {
		switch m.Role {
		case types.RoleAssistant:
			msgs = append(msgs, &schema.Message{Role: schema.Assistant, Content: m.Content})
		case types.RoleSystem:
			msgs = append(msgs, &schema.Message{Role: schema.System, Content: m.Content})
		case types.RoleTool:
			name := ""
			if m.Meta != nil {
				name = m.Meta.ToolName
			}
			msgs = append(msgs, &schema.Message{Role: schema.User, Content: "[tool " + name + "] " + m.Content})
		default:
			msgs = append(msgs, &schema.Message{Role: schema.User, Content: m.Content})
		}
	}
	if input != "" {
		msgs = append(msgs, &schema.Message{Role: schema.User, Content: input})
	}

	return compressHistory(msgs, agent)
}

// compressHistory applies the sliding window and per-message content cap.
// The system message at index 0 always survives the window.
func compressHistory(msgs []*schema.Message, agent *Agent) []*schema.Message {
	if agent.MaxHistoryMessages > 0 && len(msgs) > agent.MaxHistoryMessages+1 {
		kept := make([]*schema.Message, 0, agent.MaxHistoryMessages+1)
		kept = append(kept, msgs[0])
		kept = append(kept, msgs[len(msgs)-agent.MaxHistoryMessages:]...)
		msgs = kept
	}
	if agent.MaxMessageContentLen > 0 {
		for _, m := range msgs[1:] {
			m.Content = truncateContent(m.Content, agent.MaxMessageContentLen)
		}
	}
	return msgs
}

// truncateContent caps content at max characters, cutting on a rune
// boundary and marking the cut.
func truncateContent(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "… (truncated)"
}

// estimateTokens is the usual rough chars/4 heuristic; it only has to be
// good enough to decide when summarization should kick in.
func estimateTokens(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content) / 4
	}
	return total
}

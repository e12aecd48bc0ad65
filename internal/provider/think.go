package provider

import "strings"

// StripThinkBlock removes a leading <think>…</think> (or the truncated
// think>…</think> form some models emit) preamble from a completed reply.
// The longest outer block wins when blocks nest. An unclosed block ends at
// the next blank line, or consumes the rest of the reply. Streamed chunks
// pass through verbatim; callers apply this at finalization only.
func StripThinkBlock(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")

	var rest string
	switch {
	case strings.HasPrefix(trimmed, "<think>"):
		rest = trimmed[len("<think>"):]
	case strings.HasPrefix(trimmed, "think>"):
		rest = trimmed[len("think>"):]
	default:
		return s
	}

	if end := strings.LastIndex(rest, "</think>"); end >= 0 {
		return strings.TrimLeft(rest[end+len("</think>"):], " \t\r\n")
	}

	if end := strings.Index(rest, "\n\n"); end >= 0 {
		return strings.TrimLeft(rest[end+2:], " \t\r\n")
	}
	return ""
}

package event

import "github.com/codeturn-ai/opencode/pkg/types"

// SessionData is the payload for SessionCreated and SessionDeleted.
type SessionData struct {
	SessionID types.SessionID `json:"session_id"`
}

// ReplyChunkData mirrors one reply-text delta onto the event feed for
// consumers that don't hold the turn's update sink.
type ReplyChunkData struct {
	SessionID types.SessionID `json:"session_id"`
	Content   string          `json:"content"`
}

// ReplyDoneData marks a turn's end on the event feed.
type ReplyDoneData struct {
	SessionID types.SessionID `json:"session_id"`
}

// ToolCallData is published once per tool invocation, success or failure.
type ToolCallData struct {
	SessionID types.SessionID     `json:"session_id"`
	Event     types.ToolCallEvent `json:"event"`
}

// PermissionAskedData asks the user to decide a gated tool call.
type PermissionAskedData struct {
	RequestID  string   `json:"request_id"`
	SessionID  string   `json:"session_id"`
	Permission string   `json:"permission"`
	Patterns   []string `json:"patterns,omitempty"`
	Title      string   `json:"title"`
}

// PermissionResolvedData reports the decision for a pending request.
type PermissionResolvedData struct {
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
}

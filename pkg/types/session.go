// Package types defines the data model shared by the turn engine, the
// session store, and the tool layer.
package types

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one conversation. It is a 128-bit random ULID whose
// canonical text form doubles as the session's directory name and as the
// key on the update channel. Equality is structural.
type SessionID ulid.ULID

// NewSessionID returns a fresh random id.
func NewSessionID() SessionID { return SessionID(ulid.Make()) }

// ParseSessionID parses the canonical text form.
func ParseSessionID(s string) (SessionID, error) {
	id, err := ulid.Parse(s)
	return SessionID(id), err
}

func (id SessionID) String() string { return ulid.ULID(id).String() }

// MarshalText and UnmarshalText carry the id through JSON as its canonical
// string form.
func (id SessionID) MarshalText() ([]byte, error)  { return ulid.ULID(id).MarshalText() }
func (id *SessionID) UnmarshalText(b []byte) error { return (*ulid.ULID)(id).UnmarshalText(b) }

// Role tags a message's author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MessageMeta carries tool-call diagnostics on a tool-result message. It
// never drives control flow, with one narrow exception: the Summary flag,
// which display-layer consumers (title derivation) use to recognize and
// skip automatic compaction records.
type MessageMeta struct {
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Summary marks a message holding an automatic compaction of earlier
	// conversation rather than something the user or model said in turn.
	Summary bool `json:"summary,omitempty"`
}

// Message is one entry of a session's conversation. Messages are
// append-only within a session.
type Message struct {
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	Meta      *MessageMeta `json:"meta,omitempty"`
}

// NewMessage stamps a message with the current UTC time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// Session is a pure-data conversation, serialized as one session.json
// document. Timestamps are UTC and marshal as RFC 3339.
type Session struct {
	ID        SessionID `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session with a fresh id.
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{ID: NewSessionID(), CreatedAt: now, UpdatedAt: now}
}

// NewSessionWithID creates an empty session sharing an existing id, the
// only way two in-memory sessions can share one. Used to reconcile with a
// directory already on disk.
func NewSessionWithID(id SessionID) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// PushMessage appends m and advances UpdatedAt. UpdatedAt only ever moves
// forward, so it stays monotonic under clock skew.
func (s *Session) PushMessage(m Message) {
	s.Messages = append(s.Messages, m)
	if now := time.Now().UTC(); now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	} else {
		s.UpdatedAt = s.UpdatedAt.Add(time.Millisecond)
	}
}

// IsEmpty reports whether no message has been pushed yet.
func (s *Session) IsEmpty() bool { return len(s.Messages) == 0 }

const maxTitleLen = 40

// Title derives a list label from the first non-empty message: its first
// line, trimmed and truncated to 40 characters with an ellipsis. Automatic
// summary records are skipped so a compaction artifact never becomes the
// label. Empty sessions read "New session".
func (s *Session) Title() string {
	for _, m := range s.Messages {
		if m.Meta != nil && m.Meta.Summary {
			continue
		}
		text := strings.TrimSpace(strings.SplitN(m.Content, "\n", 2)[0])
		if text == "" {
			continue
		}
		if r := []rune(text); len(r) > maxTitleLen {
			return string(r[:maxTitleLen]) + "…"
		}
		return text
	}
	return "New session"
}

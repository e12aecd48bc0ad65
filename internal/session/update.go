package session

import (
	"context"
	"strings"
	"time"

	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// Update is the three-variant message the turn engine emits while it
// produces a reply: a piece of reply text, the single terminal marker for
// the turn, or an out-of-band log line that should not be folded into the
// reply itself.
type Update interface {
	isUpdate()
}

// ReplyChunk carries a fragment of assistant reply text. A turn emits zero
// or more of these before its terminal ReplyDone.
type ReplyChunk struct {
	Text string
}

func (ReplyChunk) isUpdate() {}

// ReplyDone marks the end of a turn. Exactly one is emitted per turn and it
// is always the last Update sent, whether the turn succeeded or failed.
type ReplyDone struct{}

func (ReplyDone) isUpdate() {}

// Log carries a diagnostic line surfaced alongside the reply rather than
// appended to it.
type Log struct {
	Level   string // "info", "warn", "error"
	Message string
}

func (Log) isUpdate() {}

// Envelope pairs an Update with the session it belongs to. It is the unit
// sent on a shared update channel serving more than one session at a time.
type Envelope struct {
	SessionID types.SessionID
	Update    Update
}

const (
	maxChunkBytes = 200
	chunkDelay    = 20 * time.Millisecond
)

// chunkContent splits text into pieces no larger than maxChunkBytes,
// breaking on line boundaries where possible so a chunk only splits a
// single line when that line alone exceeds the limit.
func chunkContent(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxChunkBytes {
			chunks = append(chunks, text)
			break
		}

		window := text[:maxChunkBytes]
		cut := strings.LastIndexByte(window, '\n')
		if cut <= 0 {
			cut = maxChunkBytes
		} else {
			cut++ // keep the newline with the chunk that precedes the break
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return chunks
}

type updateSinkKey struct{}

type boundSink struct {
	sessionID types.SessionID
	ch        chan<- Envelope
}

// WithUpdateSink attaches a channel to ctx that the turn engine reports
// Updates to as a turn progresses. Processing proceeds identically when no
// sink is attached; the turn simply isn't observed incrementally.
func WithUpdateSink(ctx context.Context, sessionID types.SessionID, sink chan<- Envelope) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, updateSinkKey{}, &boundSink{sessionID: sessionID, ch: sink})
}

// WithoutUpdateSink clears any update sink bound to ctx. A nested turn (a
// subagent spawned by the task tool) runs under the parent turn's context
// but must not emit onto the parent session's stream — in particular its
// terminal ReplyDone would break the one-ReplyDone-per-turn contract.
func WithoutUpdateSink(ctx context.Context) context.Context {
	if updateSinkFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, updateSinkKey{}, (*boundSink)(nil))
}

func updateSinkFrom(ctx context.Context) *boundSink {
	s, _ := ctx.Value(updateSinkKey{}).(*boundSink)
	return s
}

// emitUpdate sends u to the sink bound to ctx, if any, mirroring reply
// traffic onto the process event feed. It never blocks past ctx's own
// cancellation.
func emitUpdate(ctx context.Context, u Update) {
	s := updateSinkFrom(ctx)
	if s == nil {
		return
	}
	select {
	case s.ch <- Envelope{SessionID: s.sessionID, Update: u}:
	case <-ctx.Done():
	}
	mirrorToBus(s.sessionID, u)
}

// emitFinal sends u to the sink bound to ctx unconditionally, including
// after ctx has already been cancelled. Used for the terminal ReplyDone,
// which must reach the sink even when the turn ended via abort.
func emitFinal(ctx context.Context, u Update) {
	s := updateSinkFrom(ctx)
	if s == nil {
		return
	}
	s.ch <- Envelope{SessionID: s.sessionID, Update: u}
	mirrorToBus(s.sessionID, u)
}

// mirrorToBus republishes reply traffic on the event feed for consumers
// that don't hold the turn's sink (the /event HTTP stream).
func mirrorToBus(id types.SessionID, u Update) {
	switch v := u.(type) {
	case ReplyChunk:
		event.Publish(event.Event{Type: event.ReplyChunk, Data: event.ReplyChunkData{SessionID: id, Content: v.Text}})
	case ReplyDone:
		event.Publish(event.Event{Type: event.ReplyDone, Data: event.ReplyDoneData{SessionID: id}})
	}
}

// emitLog reports a diagnostic line on the sink bound to ctx, if any.
func emitLog(ctx context.Context, level, message string) {
	emitUpdate(ctx, Log{Level: level, Message: message})
}

// emitReplyChunks chunks text per the delivery contract and emits each
// piece in turn, pausing briefly between chunks so a sink observing them
// can render incrementally rather than receive one burst.
func emitReplyChunks(ctx context.Context, text string) {
	for i, c := range chunkContent(text) {
		if i > 0 {
			select {
			case <-time.After(chunkDelay):
			case <-ctx.Done():
				return
			}
		}
		emitUpdate(ctx, ReplyChunk{Text: c})
	}
}

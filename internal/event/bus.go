// Package event is the process-wide event feed: typed in-process dispatch
// for Go subscribers, mirrored as JSON onto a watermill gochannel topic for
// consumers that want a wire-shaped stream (the HTTP /event endpoint).
package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType names one kind of event.
type EventType string

const (
	SessionCreated     EventType = "session.created"
	SessionDeleted     EventType = "session.deleted"
	ReplyChunk         EventType = "reply.chunk"
	ReplyDone          EventType = "reply.done"
	ToolCall           EventType = "tool.call"
	PermissionAsked    EventType = "permission.asked"
	PermissionResolved EventType = "permission.resolved"
)

// Event pairs a type with its payload (one of the Data structs in this
// package).
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// mirrorTopic is the single watermill topic every event is mirrored onto.
const mirrorTopic = "events"

type subscriber struct {
	id uint64
	fn func(Event)
}

// Bus fans events out to subscribers. Typed subscribers get the Event
// value directly; the watermill mirror carries the JSON form.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	byType map[EventType][]subscriber
	all    []subscriber
	mirror *gochannel.GoChannel
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		byType: make(map[EventType][]subscriber),
		mirror: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

// Subscribe registers fn for one event type and returns a cancel func.
func (b *Bus) Subscribe(t EventType, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscriber{id: id, fn: fn})
	return func() { b.remove(t, id) }
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, fn: fn})
	return func() { b.remove("", id) }
}

func (b *Bus) remove(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	drop := func(subs []subscriber) []subscriber {
		for i, s := range subs {
			if s.id == id {
				return append(subs[:i], subs[i+1:]...)
			}
		}
		return subs
	}
	if t == "" {
		b.all = drop(b.all)
	} else {
		b.byType[t] = drop(b.byType[t])
	}
}

// Publish dispatches asynchronously: subscribers run on their own
// goroutine so a slow subscriber can't stall the publisher.
func (b *Bus) Publish(e Event) {
	go b.dispatch(e)
}

// PublishSync dispatches inline, returning after every subscriber ran.
func (b *Bus) PublishSync(e Event) {
	b.dispatch(e)
}

func (b *Bus) dispatch(e Event) {
	b.mu.Lock()
	targets := make([]subscriber, 0, len(b.byType[e.Type])+len(b.all))
	targets = append(targets, b.byType[e.Type]...)
	targets = append(targets, b.all...)
	b.mu.Unlock()

	for _, s := range targets {
		s.fn(e)
	}

	if payload, err := json.Marshal(e); err == nil {
		_ = b.mirror.Publish(mirrorTopic, message.NewMessage(watermill.NewUUID(), payload))
	}
}

// Messages returns the watermill mirror subscription: every event as a
// JSON message, until ctx is cancelled.
func (b *Bus) Messages(ctx context.Context) (<-chan *message.Message, error) {
	return b.mirror.Subscribe(ctx, mirrorTopic)
}

// defaultBus serves the package-level helpers below.
var defaultBus = NewBus()

func Subscribe(t EventType, fn func(Event)) func() { return defaultBus.Subscribe(t, fn) }
func SubscribeAll(fn func(Event)) func()           { return defaultBus.SubscribeAll(fn) }
func Publish(e Event)                              { defaultBus.Publish(e) }
func PublishSync(e Event)                          { defaultBus.PublishSync(e) }

// Messages exposes the default bus's watermill mirror.
func Messages(ctx context.Context) (<-chan *message.Message, error) {
	return defaultBus.Messages(ctx)
}

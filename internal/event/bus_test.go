package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_TypedDelivery(t *testing.T) {
	b := NewBus()

	var got []Event
	cancel := b.Subscribe(ToolCall, func(e Event) { got = append(got, e) })
	defer cancel()

	b.PublishSync(Event{Type: ToolCall, Data: "first"})
	b.PublishSync(Event{Type: SessionCreated, Data: "other type"})

	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Data)
}

func TestSubscribeAll_SeesEverything(t *testing.T) {
	b := NewBus()

	count := 0
	cancel := b.SubscribeAll(func(Event) { count++ })
	defer cancel()

	b.PublishSync(Event{Type: ToolCall})
	b.PublishSync(Event{Type: ReplyChunk})
	assert.Equal(t, 2, count)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := NewBus()

	count := 0
	cancel := b.Subscribe(ReplyChunk, func(Event) { count++ })
	b.PublishSync(Event{Type: ReplyChunk})
	cancel()
	b.PublishSync(Event{Type: ReplyChunk})
	assert.Equal(t, 1, count)
}

func TestMessages_MirrorsJSON(t *testing.T) {
	b := NewBus()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	msgs, err := b.Messages(ctx)
	require.NoError(t, err)

	b.PublishSync(Event{Type: ReplyChunk, Data: ReplyChunkData{Content: "hi"}})

	select {
	case msg := <-msgs:
		var decoded Event
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, ReplyChunk, decoded.Type)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no mirrored message arrived")
	}
}

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndConsumeInbound(t *testing.T) {
	b := NewMessageBus()

	b.PublishInbound(InboundMessage{
		Channel:  "telegram",
		SenderID: "42|alice",
		ChatID:   "100",
		Content:  "/start",
		Metadata: map[string]string{"user_id": "42"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "telegram", msg.Channel)
	assert.Equal(t, "/start", msg.Content)
	assert.Equal(t, "42", msg.Metadata["user_id"])
}

func TestPublishAndSubscribeOutbound(t *testing.T) {
	b := NewMessageBus()

	b.PublishOutbound(OutboundMessage{
		Channel: "telegram",
		ChatID:  "100",
		Content: "Done!",
		Buttons: [][]Button{{{Text: "Login", Data: "login"}}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "Done!", msg.Content)
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, "login", msg.Buttons[0][0].Data)
}

func TestConsumeRespectsContext(t *testing.T) {
	b := NewMessageBus()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
	_, ok = b.SubscribeOutbound(ctx)
	assert.False(t, ok)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := NewMessageBus()
	b.Close()

	b.PublishInbound(InboundMessage{Channel: "telegram", Content: "late"})
	b.PublishOutbound(OutboundMessage{Channel: "telegram", Content: "late"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewMessageBus()
	b.Close()
	b.Close()
}

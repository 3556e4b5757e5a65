package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/weforks/taskbot/pkg/bus"
	"github.com/weforks/taskbot/pkg/logger"
)

// Channel is one chat transport. The only implementation here is Telegram;
// anything speaking the same inbound/outbound contract can register with the
// Manager.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

// BaseChannel carries the allowlist check and the inbound publish path
// shared by channel implementations.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
	running   atomic.Bool
}

func NewBaseChannel(name string, messageBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       messageBus,
		allowFrom: allowFrom,
	}
}

func (b *BaseChannel) Name() string {
	return b.name
}

func (b *BaseChannel) IsRunning() bool {
	return b.running.Load()
}

func (b *BaseChannel) setRunning(running bool) {
	b.running.Store(running)
}

// IsAllowed reports whether the sender may use the bot. Sender ids may be
// compound "id|username"; allowlist entries may be a bare id, a username
// (with or without @), or a legacy compound value. An empty allowlist allows
// everyone.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}

	id, username := splitSenderID(senderID)
	for _, allowed := range b.allowFrom {
		if allowed == "" {
			continue
		}
		if allowed == senderID || allowed == id {
			return true
		}
		if username != "" && (allowed == username || allowed == "@"+username) {
			return true
		}
		if allowedID, _ := splitSenderID(allowed); allowedID == id {
			return true
		}
	}
	return false
}

// HandleMessage publishes an inbound event after the allowlist check.
// callbackData is empty for plain text messages.
func (b *BaseChannel) HandleMessage(senderID, chatID, content, callbackData string, metadata map[string]string) {
	if !b.IsAllowed(senderID) {
		logger.DebugCF(b.name, "Message rejected by allowlist", map[string]any{
			"sender_id": senderID,
		})
		return
	}

	b.bus.PublishInbound(bus.InboundMessage{
		Channel:      b.name,
		SenderID:     senderID,
		ChatID:       chatID,
		Content:      content,
		CallbackData: callbackData,
		Metadata:     metadata,
	})
}

func splitSenderID(senderID string) (id, username string) {
	if idx := strings.IndexByte(senderID, '|'); idx >= 0 {
		return senderID[:idx], senderID[idx+1:]
	}
	return senderID, ""
}

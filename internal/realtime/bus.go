package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventKind labels what changed in the store.
type EventKind string

const (
	EventChatUpdated    EventKind = "chat_updated"
	EventMessageChanged EventKind = "message_changed"
	EventTypingChanged  EventKind = "typing_changed"
)

// Event is a change notification. It carries only identifiers: subscribers
// re-read the store and rebuild the full snapshot, they never patch state
// from the event itself.
type Event struct {
	Kind      EventKind `json:"kind"`
	ChatID    string    `json:"chatId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
}

// Channel names. One global channel for chat-list changes, one channel per
// chat for message and typing changes.
func ChatsChannel() string                 { return "echochat:chats" }
func MessagesChannel(chatID string) string { return "echochat:messages:" + chatID }
func TypingChannel(chatID string) string   { return "echochat:typing:" + chatID }

// Bus delivers change events from writers to subscription streams. Delivery
// order within one channel follows publish order; nothing is guaranteed
// across channels.
type Bus interface {
	Publish(ctx context.Context, channel string, event Event) error
	Subscribe(channel string) (<-chan Event, func())
}

// RedisBus implements Bus on redis pub/sub so change notifications reach
// every server instance, not just the one that performed the write.
type RedisBus struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

func NewRedisBus(client *redis.Client, log *zap.SugaredLogger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a pub/sub subscription and converts raw payloads into
// Events. The returned cancel function closes the subscription, which in
// turn closes the event channel; it is safe to call more than once.
func (b *RedisBus) Subscribe(channel string) (<-chan Event, func()) {
	pubsub := b.client.Subscribe(context.Background(), channel)
	out := make(chan Event, 16)
	done := make(chan struct{})

	go b.forward(channel, pubsub.Channel(), out, done)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				b.log.Warnw("bus: error closing subscription", "channel", channel, "error", err)
			}
		})
	}
	return out, cancel
}

// forward decodes pub/sub payloads onto out until the source closes or the
// subscription is cancelled. The send is guarded by done so a cancelled
// subscriber with a full buffer never wedges the goroutine.
func (b *RedisBus) forward(channel string, in <-chan *redis.Message, out chan<- Event, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warnw("bus: dropping malformed event", "channel", channel, "error", err)
				continue
			}
			select {
			case out <- event:
			case <-done:
				return
			}
		}
	}
}

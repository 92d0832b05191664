package realtime

import (
	"context"
	"sort"
	"sync"

	"echochat-backend/internal/models"
	"echochat-backend/internal/store"

	"go.uber.org/zap"
)

// Manager turns store collections plus bus events into live snapshot streams.
// Every stream emits a complete, already-transformed result set on open and
// again after each relevant change event; consumers replace their state
// wholesale instead of applying deltas.
type Manager struct {
	chats    store.ChatStore
	messages store.MessageStore
	typing   store.TypingStore
	bus      Bus
	log      *zap.SugaredLogger
}

func NewManager(chats store.ChatStore, messages store.MessageStore, typing store.TypingStore, bus Bus, log *zap.SugaredLogger) *Manager {
	return &Manager{
		chats:    chats,
		messages: messages,
		typing:   typing,
		bus:      bus,
		log:      log,
	}
}

// MessageStream is a live subscription to one chat's visible messages.
// Close releases the bus subscription; it is safe to call more than once.
type MessageStream struct {
	C    <-chan []*models.Message
	stop func()
	once sync.Once
}

func (s *MessageStream) Close() { s.once.Do(s.stop) }

// ChatStream is a live subscription to one user's chat list.
type ChatStream struct {
	C    <-chan []*models.Chat
	stop func()
	once sync.Once
}

func (s *ChatStream) Close() { s.once.Do(s.stop) }

// TypingStream is a live subscription to one chat's typing indicators.
type TypingStream struct {
	C    <-chan []*models.TypingIndicator
	stop func()
	once sync.Once
}

func (s *TypingStream) Close() { s.once.Do(s.stop) }

// ChatMessages opens a message stream for viewerID on chatID. The first
// snapshot is loaded synchronously so a failing store surfaces as an error
// here rather than as a silently empty stream.
func (m *Manager) ChatMessages(ctx context.Context, chatID string, limit int64, viewerID string) (*MessageStream, error) {
	snapshot, err := m.loadMessages(ctx, chatID, limit, viewerID)
	if err != nil {
		return nil, err
	}

	events, cancel := m.bus.Subscribe(MessagesChannel(chatID))
	out := make(chan []*models.Message, 1)
	pushMessages(out, snapshot)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snap, err := m.loadMessages(ctx, chatID, limit, viewerID)
				if err != nil {
					m.log.Warnw("message stream reload failed", "chatId", chatID, "error", err)
					continue
				}
				pushMessages(out, snap)
			}
		}
	}()

	return &MessageStream{C: out, stop: cancel}, nil
}

// UserChats opens a chat-list stream for userID. Chat changes are published
// on one shared channel; the membership filter runs per subscriber.
func (m *Manager) UserChats(ctx context.Context, userID string, limit int64) (*ChatStream, error) {
	snapshot, err := m.loadChats(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	events, cancel := m.bus.Subscribe(ChatsChannel())
	out := make(chan []*models.Chat, 1)
	pushChats(out, snapshot)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snap, err := m.loadChats(ctx, userID, limit)
				if err != nil {
					m.log.Warnw("chat stream reload failed", "userId", userID, "error", err)
					continue
				}
				pushChats(out, snap)
			}
		}
	}()

	return &ChatStream{C: out, stop: cancel}, nil
}

// TypingIndicators opens a typing stream for chatID. Snapshots include every
// typing participant; the view layer drops the viewer's own entry.
func (m *Manager) TypingIndicators(ctx context.Context, chatID string) (*TypingStream, error) {
	snapshot, err := m.typing.ListTyping(ctx, chatID)
	if err != nil {
		return nil, err
	}

	events, cancel := m.bus.Subscribe(TypingChannel(chatID))
	out := make(chan []*models.TypingIndicator, 1)
	pushTyping(out, snapshot)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snap, err := m.typing.ListTyping(ctx, chatID)
				if err != nil {
					m.log.Warnw("typing stream reload failed", "chatId", chatID, "error", err)
					continue
				}
				pushTyping(out, snap)
			}
		}
	}()

	return &TypingStream{C: out, stop: cancel}, nil
}

func (m *Manager) loadMessages(ctx context.Context, chatID string, limit int64, viewerID string) ([]*models.Message, error) {
	raw, err := m.messages.ListChatMessages(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	return VisibleMessages(raw, viewerID), nil
}

func (m *Manager) loadChats(ctx context.Context, userID string, limit int64) ([]*models.Chat, error) {
	raw, err := m.chats.ListRecentChats(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FilterUserChats(raw, userID), nil
}

// VisibleMessages applies the viewer-dependent visibility rules and restores
// chronological order. Deleted messages are hidden from everyone; recalled
// messages are hidden only from their sender and still rendered to the other
// participant.
func VisibleMessages(raw []*models.Message, viewerID string) []*models.Message {
	out := make([]*models.Message, 0, len(raw))
	for _, msg := range raw {
		if msg.IsDeleted {
			continue
		}
		if msg.IsRecalled && msg.SenderID == viewerID {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FilterUserChats keeps only active chats the user participates in, newest activity
// first. The membership check runs after the store's limit window, mirroring
// how the recency window is defined.
func FilterUserChats(raw []*models.Chat, userID string) []*models.Chat {
	out := make([]*models.Chat, 0, len(raw))
	for _, chat := range raw {
		if !chat.IsActive {
			continue
		}
		if !chat.HasParticipant(userID) {
			continue
		}
		out = append(out, chat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// The push helpers implement latest-wins delivery on a buffer of one: a slow
// consumer sees the freshest snapshot, never a backlog of stale ones. Each
// stream has a single producer goroutine, so drain-then-send cannot block.
func pushMessages(ch chan []*models.Message, snap []*models.Message) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

func pushChats(ch chan []*models.Chat, snap []*models.Chat) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

func pushTyping(ch chan []*models.TypingIndicator, snap []*models.TypingIndicator) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"echochat-backend/internal/chat"
	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store"

	"go.uber.org/zap"
)

// NoMessagesPlaceholder is shown for chats that have no messages yet.
const NoMessagesPlaceholder = "No messages yet"

// ChatListItem is one rendered row of the conversation list.
type ChatListItem struct {
	ChatID      string `json:"chatId"`
	Title       string `json:"title"`
	Avatar      string `json:"avatar,omitempty"`
	Preview     string `json:"preview"`
	Timestamp   string `json:"timestamp"`
	OtherUserID string `json:"otherUserId"`
	OtherOnline bool   `json:"otherOnline"`
}

// ChatList is the stateful view of the user's conversation list, fed by the
// chat-list subscription and decorated with the peer's presence.
type ChatList struct {
	user    *models.CurrentUser
	limit   int64
	manager *realtime.Manager
	users   store.UserStore
	log     *zap.SugaredLogger
	now     func() time.Time

	mu        sync.Mutex
	items     []ChatListItem
	stream    *realtime.ChatStream
	closeOnce sync.Once
}

func NewChatList(user *models.CurrentUser, limit int64, manager *realtime.Manager, users store.UserStore, log *zap.SugaredLogger) *ChatList {
	return &ChatList{
		user:    user,
		limit:   limit,
		manager: manager,
		users:   users,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open subscribes to the user's chat list and starts rendering snapshots.
func (l *ChatList) Open(ctx context.Context) error {
	if l.user == nil || l.user.ID == "" {
		return chat.ErrAuthenticationRequired
	}
	stream, err := l.manager.UserChats(ctx, l.user.ID, l.limit)
	if err != nil {
		return err
	}
	l.stream = stream

	go func() {
		for snap := range stream.C {
			l.render(ctx, snap)
		}
	}()
	return nil
}

func (l *ChatList) render(ctx context.Context, chats []*models.Chat) {
	items := make([]ChatListItem, 0, len(chats))
	for _, c := range chats {
		items = append(items, l.renderItem(ctx, c))
	}
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
}

func (l *ChatList) renderItem(ctx context.Context, c *models.Chat) ChatListItem {
	item := ChatListItem{ChatID: c.ID, Preview: NoMessagesPlaceholder}

	if other := c.OtherParticipant(l.user.ID); other != nil {
		item.Title = other.UserName
		item.Avatar = other.UserAvatar
		item.OtherUserID = other.UserID
		if u, err := l.users.GetUserByID(ctx, other.UserID); err == nil {
			item.OtherOnline = u.IsOnline
		}
	}
	if c.LastMessage != nil {
		item.Preview = c.LastMessage.Content
		item.Timestamp = RelativeTime(c.LastMessage.Timestamp, l.now())
	}
	return item
}

// Items returns the current rendered rows, newest activity first.
func (l *ChatList) Items() []ChatListItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChatListItem, len(l.items))
	copy(out, l.items)
	return out
}

// Close releases the chat-list subscription.
func (l *ChatList) Close() {
	l.closeOnce.Do(func() {
		if l.stream != nil {
			l.stream.Close()
		}
	})
}

// RelativeTime renders a compact age label for list rows.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 48*time.Hour:
		return "Yesterday"
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

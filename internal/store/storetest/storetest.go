// Package storetest provides in-memory implementations of the store
// interfaces. They reproduce the semantic guarantees of the document store
// (idempotent chat creation, one reaction per user, guarded read receipts,
// edit history of depth one) so service and subscription tests can exercise
// real behavior without a running database.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"echochat-backend/internal/models"
	"echochat-backend/internal/store"
)

// ChatStore is an in-memory store.ChatStore.
type ChatStore struct {
	mu    sync.Mutex
	chats map[string]*models.Chat
}

func NewChatStore() *ChatStore {
	return &ChatStore{chats: make(map[string]*models.Chat)}
}

func (s *ChatStore) CreateChat(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.chats[chat.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *chat
	s.chats[chat.ID] = &cp
	out := cp
	return &out, nil
}

func (s *ChatStore) GetChatByID(_ context.Context, chatID string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, store.ErrChatNotFound
	}
	cp := *chat
	return &cp, nil
}

func (s *ChatStore) ListRecentChats(_ context.Context, limit int64) ([]*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		cp := *chat
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ChatStore) SetLastMessage(_ context.Context, chatID string, last *models.LastMessage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return store.ErrChatNotFound
	}
	cp := *last
	chat.LastMessage = &cp
	chat.UpdatedAt = at
	return nil
}

func (s *ChatStore) DeactivateChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return store.ErrChatNotFound
	}
	chat.IsActive = false
	return nil
}

// MessageStore is an in-memory store.MessageStore.
type MessageStore struct {
	mu       sync.Mutex
	messages map[string]*models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string]*models.Message)}
}

// Seed inserts messages directly, bypassing CreateMessage defaults.
func (s *MessageStore) Seed(msgs ...*models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		cp := *m
		s.messages[m.ID] = &cp
	}
}

func (s *MessageStore) CreateMessage(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *message
	if cp.Reactions == nil {
		cp.Reactions = []models.Reaction{}
	}
	if cp.ReadBy == nil {
		cp.ReadBy = []models.ReadReceipt{}
	}
	s.messages[cp.ID] = &cp
	return nil
}

func (s *MessageStore) GetMessageByID(_ context.Context, messageID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *MessageStore) ListChatMessages(_ context.Context, chatID string, limit int64) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, 0)
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MessageStore) UpdateMessageStatus(_ context.Context, messageID string, status models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrMessageNotFound
	}
	msg.Status = status
	return nil
}

func (s *MessageStore) UpdateMessageContent(_ context.Context, messageID, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrMessageNotFound
	}
	msg.OriginalContent = msg.Content
	msg.Content = content
	msg.IsEdited = true
	t := at
	msg.UpdatedAt = &t
	return nil
}

func (s *MessageStore) SoftDeleteMessage(_ context.Context, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrMessageNotFound
	}
	msg.IsDeleted = true
	t := at
	msg.DeletedAt = &t
	msg.Content = models.DeletedMessagePlaceholder
	return nil
}

func (s *MessageStore) RecallMessage(_ context.Context, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrMessageNotFound
	}
	msg.IsRecalled = true
	t := at
	msg.RecalledAt = &t
	return nil
}

func (s *MessageStore) AppendReadReceipt(_ context.Context, messageID string, receipt models.ReadReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil
	}
	if msg.SenderID == receipt.UserID {
		return nil
	}
	for _, r := range msg.ReadBy {
		if r.UserID == receipt.UserID {
			return nil
		}
	}
	msg.ReadBy = append(msg.ReadBy, receipt)
	msg.Status = models.StatusRead
	return nil
}

func (s *MessageStore) SetReaction(_ context.Context, messageID string, reaction models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrMessageNotFound
	}
	for _, r := range msg.Reactions {
		if r.UserID == reaction.UserID && r.Emoji == reaction.Emoji {
			return nil
		}
	}
	// Fresh slice: snapshots handed out earlier must not see this change.
	kept := make([]models.Reaction, 0, len(msg.Reactions)+1)
	for _, r := range msg.Reactions {
		if r.UserID != reaction.UserID {
			kept = append(kept, r)
		}
	}
	msg.Reactions = append(kept, reaction)
	return nil
}

func (s *MessageStore) RemoveReaction(_ context.Context, messageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return store.ErrMessageNotFound
	}
	kept := make([]models.Reaction, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	msg.Reactions = kept
	return nil
}

// TypingStore is an in-memory store.TypingStore.
type TypingStore struct {
	mu         sync.Mutex
	indicators map[string]*models.TypingIndicator
}

func NewTypingStore() *TypingStore {
	return &TypingStore{indicators: make(map[string]*models.TypingIndicator)}
}

func (s *TypingStore) SetTyping(_ context.Context, indicator *models.TypingIndicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *indicator
	cp.ID = models.TypingIndicatorID(cp.ChatID, cp.UserID)
	cp.IsTyping = true
	s.indicators[cp.ID] = &cp
	return nil
}

func (s *TypingStore) ClearTyping(_ context.Context, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indicators, models.TypingIndicatorID(chatID, userID))
	return nil
}

func (s *TypingStore) ListTyping(_ context.Context, chatID string) ([]*models.TypingIndicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TypingIndicator, 0)
	for _, ind := range s.indicators {
		if ind.ChatID == chatID {
			cp := *ind
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*models.User)}
}

func (s *UserStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	cp := *user
	s.users[cp.ID] = &cp
	return nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *UserStore) SearchUsers(_ context.Context, query, excludeUserID string, limit int64) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.User, 0)
	q := strings.ToLower(query)
	for _, u := range s.users {
		if u.ID == excludeUserID {
			continue
		}
		if !strings.Contains(strings.ToLower(u.UserName), q) && !strings.Contains(strings.ToLower(u.FullName), q) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *UserStore) UpdatePresence(_ context.Context, userID string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	user.IsOnline = online
	user.LastSeen = at
	user.UpdatedAt = at
	return nil
}

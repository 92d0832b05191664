package chat

import (
	"context"
	"time"

	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store"

	"go.uber.org/zap"
)

// ChatService owns chat lifecycle operations.
type ChatService struct {
	chats store.ChatStore
	users store.UserStore
	bus   realtime.Bus
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewChatService(chats store.ChatStore, users store.UserStore, bus realtime.Bus, log *zap.SugaredLogger) *ChatService {
	return &ChatService{
		chats: chats,
		users: users,
		bus:   bus,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateChat starts (or rejoins) the 1:1 chat between the current user and
// the requested peer. The chat id is derived from the participant pair, so
// calling this twice, from either side, always lands on the same chat.
func (s *ChatService) CreateChat(ctx context.Context, current *models.CurrentUser, req *models.CreateChatRequest) (*models.Chat, error) {
	if current == nil || current.ID == "" {
		return nil, ErrAuthenticationRequired
	}
	if req.OtherUserID == "" || req.OtherUserID == current.ID {
		return nil, ErrInvalidParticipants
	}

	otherName := req.OtherUserName
	otherAvatar := ""
	if other, err := s.users.GetUserByID(ctx, req.OtherUserID); err == nil {
		otherName = other.UserName
		otherAvatar = other.Avatar
	}

	now := s.now()
	chat := &models.Chat{
		ID:   models.PrivateChatID(current.ID, req.OtherUserID),
		Type: models.ChatTypePrivate,
		Participants: []models.ChatParticipant{
			{
				UserID:     current.ID,
				UserName:   current.UserName,
				UserAvatar: current.Avatar,
				JoinedAt:   now,
				IsActive:   true,
			},
			{
				UserID:     req.OtherUserID,
				UserName:   otherName,
				UserAvatar: otherAvatar,
				JoinedAt:   now,
				IsActive:   true,
			},
		},
		CreatedBy: current.ID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
		Settings:  models.DefaultChatSettings(),
	}

	created, err := s.chats.CreateChat(ctx, chat)
	if err != nil {
		return nil, err
	}

	s.publishChatChange(ctx, created.ID)
	return created, nil
}

// GetChat loads one chat and verifies the caller belongs to it.
func (s *ChatService) GetChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return chat, nil
}

// ListUserChats is the one-shot form of the chat-list subscription: the same
// window, membership filter and ordering, without the live stream.
func (s *ChatService) ListUserChats(ctx context.Context, userID string, limit int64) ([]*models.Chat, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	raw, err := s.chats.ListRecentChats(ctx, limit)
	if err != nil {
		return nil, err
	}
	return realtime.FilterUserChats(raw, userID), nil
}

// DeactivateChat hides a chat from both participants' lists.
func (s *ChatService) DeactivateChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return err
	}
	if err := s.chats.DeactivateChat(ctx, chatID); err != nil {
		return err
	}
	s.publishChatChange(ctx, chatID)
	return nil
}

func (s *ChatService) publishChatChange(ctx context.Context, chatID string) {
	event := realtime.Event{Kind: realtime.EventChatUpdated, ChatID: chatID}
	if err := s.bus.Publish(ctx, realtime.ChatsChannel(), event); err != nil {
		s.log.Warnw("failed to publish chat change", "chatId", chatID, "error", err)
	}
}

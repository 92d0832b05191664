package presence

import (
	"context"
	"errors"
	"time"

	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store"

	"go.uber.org/zap"
)

var (
	// ErrAuthenticationRequired is returned when a presence or typing update
	// runs without a resolved user.
	ErrAuthenticationRequired = errors.New("user not authenticated")

	// ErrNotParticipant is returned when a typing update targets a chat the
	// user is not a member of.
	ErrNotParticipant = errors.New("user is not a participant of this chat")
)

// Coordinator owns presence and typing state. Presence lives on the user
// record; typing indicators are ephemeral per-chat records. Both are
// announced on the bus so open subscriptions refresh.
type Coordinator struct {
	users  store.UserStore
	typing store.TypingStore
	chats  store.ChatStore
	bus    realtime.Bus
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewCoordinator(users store.UserStore, typing store.TypingStore, chats store.ChatStore, bus realtime.Bus, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		users:  users,
		typing: typing,
		chats:  chats,
		bus:    bus,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpdateUserPresence flips the user online or offline and stamps lastSeen.
// Each client writes only its own record, so the merge is last-write-wins.
func (c *Coordinator) UpdateUserPresence(ctx context.Context, userID string, status models.UserStatus) error {
	if userID == "" {
		return ErrAuthenticationRequired
	}
	online := status == models.StatusOnline
	if err := c.users.UpdatePresence(ctx, userID, online, c.now()); err != nil {
		return err
	}

	event := realtime.Event{Kind: realtime.EventChatUpdated, UserID: userID}
	if err := c.bus.Publish(ctx, realtime.ChatsChannel(), event); err != nil {
		c.log.Warnw("failed to publish presence change", "userId", userID, "error", err)
	}
	return nil
}

// UpdateTypingStatus creates or clears the (chat, user) typing record. Start
// refreshes the record's timestamp; stop deletes it, tolerating records that
// are already gone. Only chat participants may write typing state.
func (c *Coordinator) UpdateTypingStatus(ctx context.Context, userID, userName, chatID string, isTyping bool) error {
	if userID == "" {
		return ErrAuthenticationRequired
	}
	chat, err := c.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return ErrNotParticipant
	}

	if isTyping {
		err = c.typing.SetTyping(ctx, &models.TypingIndicator{
			ChatID:    chatID,
			UserID:    userID,
			UserName:  userName,
			Timestamp: c.now(),
		})
	} else {
		err = c.typing.ClearTyping(ctx, chatID, userID)
	}
	if err != nil {
		return err
	}

	event := realtime.Event{Kind: realtime.EventTypingChanged, ChatID: chatID, UserID: userID}
	if err := c.bus.Publish(ctx, realtime.TypingChannel(chatID), event); err != nil {
		c.log.Warnw("failed to publish typing change", "chatId", chatID, "userId", userID, "error", err)
	}
	return nil
}

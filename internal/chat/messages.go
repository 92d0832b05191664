package chat

import (
	"context"
	"time"

	"echochat-backend/internal/events"
	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store"
	"echochat-backend/internal/upload"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageService owns the message lifecycle: send, edit, delete, recall,
// read receipts and reactions. Every mutation lands in the store first and
// is then announced on the bus; the chat-list snapshot and downstream event
// pipeline are updated as part of the same operation.
type MessageService struct {
	messages  store.MessageStore
	chats     store.ChatStore
	bus       realtime.Bus
	uploader  upload.Uploader
	publisher events.Publisher
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewMessageService(messages store.MessageStore, chats store.ChatStore, bus realtime.Bus, uploader upload.Uploader, publisher events.Publisher, log *zap.SugaredLogger) *MessageService {
	return &MessageService{
		messages:  messages,
		chats:     chats,
		bus:       bus,
		uploader:  uploader,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage persists a new message and fans the change out. Attachments
// are uploaded before anything is written: a failed or rejected upload aborts
// the send with no document created. The stored message then moves
// sending -> sent, the chat's lastMessage snapshot is refreshed, and the
// change is published for subscribers and downstream consumers.
func (s *MessageService) SendMessage(ctx context.Context, sender *models.CurrentUser, req *models.SendMessageRequest) (*models.Message, error) {
	if sender == nil || sender.ID == "" {
		return nil, ErrAuthenticationRequired
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(req.Attachments) > 0 && s.uploader == nil {
		return nil, ErrUploadsUnavailable
	}

	chat, err := s.chats.GetChatByID(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(sender.ID) {
		return nil, ErrNotParticipant
	}

	now := s.now()
	attachments := make([]models.MediaAttachment, 0, len(req.Attachments))
	for i := range req.Attachments {
		att, err := upload.UploadAttachment(ctx, s.uploader, chat.ID, &req.Attachments[i], chat.Settings.AllowedFileTypes, now)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, *att)
	}

	msg := &models.Message{
		ID:               uuid.NewString(),
		ChatID:           chat.ID,
		SenderID:         sender.ID,
		SenderName:       sender.UserName,
		SenderAvatar:     sender.Avatar,
		Type:             req.Type,
		Content:          req.Content,
		Attachments:      attachments,
		Status:           models.StatusSending,
		CreatedAt:        now,
		ReplyToMessageID: req.ReplyToMessageID,
		Reactions:        []models.Reaction{},
		ReadBy:           []models.ReadReceipt{},
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.messages.UpdateMessageStatus(ctx, msg.ID, models.StatusSent); err != nil {
		s.log.Warnw("message stuck in sending", "messageId", msg.ID, "error", err)
	} else {
		msg.Status = models.StatusSent
	}

	last := &models.LastMessage{
		ID:         msg.ID,
		Content:    lastMessagePreview(msg.Type, msg.Content),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Type:       msg.Type,
		Timestamp:  msg.CreatedAt,
	}
	if err := s.chats.SetLastMessage(ctx, chat.ID, last, now); err != nil {
		s.log.Warnw("failed to update chat snapshot", "chatId", chat.ID, "error", err)
	}

	s.publishMessageChange(ctx, chat.ID, msg.ID)
	s.publishChatChange(ctx, chat.ID)
	s.emitEvent(ctx, events.EventMessageSent, msg)
	return msg, nil
}

// UpdateMessage edits a message body. Only the sender may edit, and only
// while the message is neither deleted nor recalled. The previous content is
// preserved in originalContent by the store's atomic update.
func (s *MessageService) UpdateMessage(ctx context.Context, userID, messageID, content string) (*models.Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageSender
	}
	if msg.IsDeleted || msg.IsRecalled {
		return nil, ErrMessageImmutable
	}

	if err := s.messages.UpdateMessageContent(ctx, messageID, content, s.now()); err != nil {
		return nil, err
	}
	s.publishMessageChange(ctx, msg.ChatID, messageID)

	return s.messages.GetMessageByID(ctx, messageID)
}

// DeleteMessage soft-deletes a message for every viewer. If the chat's
// lastMessage snapshot pointed at it, the snapshot content is replaced with
// the placeholder so chat lists stop showing the original text.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotMessageSender
	}

	now := s.now()
	if err := s.messages.SoftDeleteMessage(ctx, messageID, now); err != nil {
		return err
	}

	if chat, err := s.chats.GetChatByID(ctx, msg.ChatID); err == nil &&
		chat.LastMessage != nil && chat.LastMessage.ID == messageID {
		last := *chat.LastMessage
		last.Content = models.DeletedMessagePlaceholder
		if err := s.chats.SetLastMessage(ctx, msg.ChatID, &last, now); err != nil {
			s.log.Warnw("failed to update chat snapshot", "chatId", msg.ChatID, "error", err)
		}
		s.publishChatChange(ctx, msg.ChatID)
	}

	s.publishMessageChange(ctx, msg.ChatID, messageID)
	s.emitEvent(ctx, events.EventMessageDeleted, msg)
	return nil
}

// RecallMessage withdraws a message from the sender's own view while the
// other participant keeps seeing it. The content is untouched; visibility is
// decided per viewer at read time.
func (s *MessageService) RecallMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotMessageSender
	}

	if err := s.messages.RecallMessage(ctx, messageID, s.now()); err != nil {
		return err
	}
	s.publishMessageChange(ctx, msg.ChatID, messageID)
	s.emitEvent(ctx, events.EventMessageRecalled, msg)
	return nil
}

// MarkMessageAsRead records a read receipt for userID. Reading your own
// message is a silent no-op, and repeat reads never add a second receipt.
func (s *MessageService) MarkMessageAsRead(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return nil
	}
	if msg.ReadBySet(userID) {
		return nil
	}

	receipt := models.ReadReceipt{UserID: userID, ReadAt: s.now()}
	if err := s.messages.AppendReadReceipt(ctx, messageID, receipt); err != nil {
		return err
	}
	s.publishMessageChange(ctx, msg.ChatID, messageID)
	return nil
}

// AddReaction sets the user's reaction on a message. A user holds at most
// one reaction per message, so this also covers switching emoji; reacting
// with the same emoji again changes nothing.
func (s *MessageService) AddReaction(ctx context.Context, user *models.CurrentUser, messageID, emoji string) error {
	if user == nil || user.ID == "" {
		return ErrAuthenticationRequired
	}
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}

	reaction := models.Reaction{
		UserID:    user.ID,
		UserName:  user.UserName,
		Emoji:     emoji,
		CreatedAt: s.now(),
	}
	if err := s.messages.SetReaction(ctx, messageID, reaction); err != nil {
		return err
	}
	s.publishMessageChange(ctx, msg.ChatID, messageID)
	return nil
}

// RemoveReaction clears the user's reaction, if they had one.
func (s *MessageService) RemoveReaction(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.messages.RemoveReaction(ctx, messageID, userID); err != nil {
		return err
	}
	s.publishMessageChange(ctx, msg.ChatID, messageID)
	return nil
}

// ListChatMessages is the one-shot form of the message subscription, with
// the same visibility rules and chronological ordering.
func (s *MessageService) ListChatMessages(ctx context.Context, userID, chatID string, limit int64) ([]*models.Message, error) {
	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	raw, err := s.messages.ListChatMessages(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	return realtime.VisibleMessages(raw, userID), nil
}

func (s *MessageService) publishMessageChange(ctx context.Context, chatID, messageID string) {
	event := realtime.Event{Kind: realtime.EventMessageChanged, ChatID: chatID, MessageID: messageID}
	if err := s.bus.Publish(ctx, realtime.MessagesChannel(chatID), event); err != nil {
		s.log.Warnw("failed to publish message change", "chatId", chatID, "messageId", messageID, "error", err)
	}
}

func (s *MessageService) publishChatChange(ctx context.Context, chatID string) {
	event := realtime.Event{Kind: realtime.EventChatUpdated, ChatID: chatID}
	if err := s.bus.Publish(ctx, realtime.ChatsChannel(), event); err != nil {
		s.log.Warnw("failed to publish chat change", "chatId", chatID, "error", err)
	}
}

// emitEvent hands the event to the downstream pipeline. Delivery there is
// best effort and never fails the user-facing operation.
func (s *MessageService) emitEvent(ctx context.Context, eventType string, msg *models.Message) {
	if s.publisher == nil {
		return
	}
	event := events.MessageEvent{
		EventType:  eventType,
		ChatID:     msg.ChatID,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Type:       msg.Type,
		Preview:    lastMessagePreview(msg.Type, msg.Content),
		OccurredAt: s.now(),
	}
	if err := s.publisher.PublishMessageEvent(ctx, event); err != nil {
		s.log.Warnw("failed to emit message event", "eventType", eventType, "messageId", msg.ID, "error", err)
	}
}

// lastMessagePreview is the text shown in chat lists for the newest message.
func lastMessagePreview(t models.MessageType, content string) string {
	switch t {
	case models.MessageTypeImage:
		return "📷 Photo"
	case models.MessageTypeAudio:
		return "🎤 Voice message"
	case models.MessageTypeFile:
		return "📎 Attachment"
	default:
		return content
	}
}

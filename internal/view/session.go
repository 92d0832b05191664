package view

import (
	"context"
	"sync"
	"time"

	"echochat-backend/internal/chat"
	"echochat-backend/internal/models"
	"echochat-backend/internal/presence"
	"echochat-backend/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTypingDebounce is how long after the last keystroke the typing
// indicator stays up before a stop signal is sent.
const DefaultTypingDebounce = 3 * time.Second

// ChatSession is the stateful view of one open conversation. It merges the
// live confirmed snapshot with locally pending optimistic messages, tracks
// the peer's typing state, and owns the keystroke debounce timer.
type ChatSession struct {
	user     *models.CurrentUser
	chatID   string
	limit    int64
	messages *chat.MessageService
	presence *presence.Coordinator
	manager  *realtime.Manager
	log      *zap.SugaredLogger

	debounce time.Duration

	mu           sync.Mutex
	confirmed    []*models.Message
	pending      []*models.Message
	otherTyping  bool
	typingTimer  *time.Timer
	typingActive bool

	msgStream    *realtime.MessageStream
	typingStream *realtime.TypingStream
	closeOnce    sync.Once
}

func NewChatSession(user *models.CurrentUser, chatID string, limit int64, messages *chat.MessageService, pres *presence.Coordinator, manager *realtime.Manager, log *zap.SugaredLogger) *ChatSession {
	return &ChatSession{
		user:     user,
		chatID:   chatID,
		limit:    limit,
		messages: messages,
		presence: pres,
		manager:  manager,
		log:      log,
		debounce: DefaultTypingDebounce,
	}
}

// SetTypingDebounce overrides the keystroke debounce, mainly for tests.
func (s *ChatSession) SetTypingDebounce(d time.Duration) { s.debounce = d }

// Open subscribes to the chat's message and typing streams and starts
// consuming snapshots. The subscriptions live exactly as long as the
// session: Close releases both.
func (s *ChatSession) Open(ctx context.Context) error {
	if s.user == nil || s.user.ID == "" {
		return chat.ErrAuthenticationRequired
	}

	msgStream, err := s.manager.ChatMessages(ctx, s.chatID, s.limit, s.user.ID)
	if err != nil {
		return err
	}
	typingStream, err := s.manager.TypingIndicators(ctx, s.chatID)
	if err != nil {
		msgStream.Close()
		return err
	}
	s.msgStream = msgStream
	s.typingStream = typingStream

	go func() {
		for snap := range msgStream.C {
			s.applySnapshot(snap)
		}
	}()
	go func() {
		for indicators := range typingStream.C {
			s.applyTyping(indicators)
		}
	}()
	return nil
}

// applySnapshot replaces the confirmed view and reconciles pending entries:
// any optimistic message whose id now appears in the confirmed set is done
// and dropped. Failed entries keep their temporary id and stay visible.
func (s *ChatSession) applySnapshot(snap []*models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed = snap
	confirmedIDs := make(map[string]bool, len(snap))
	for _, m := range snap {
		confirmedIDs[m.ID] = true
	}
	kept := s.pending[:0]
	for _, p := range s.pending {
		if !confirmedIDs[p.ID] {
			kept = append(kept, p)
		}
	}
	s.pending = kept
}

func (s *ChatSession) applyTyping(indicators []*models.TypingIndicator) {
	typing := false
	for _, ind := range indicators {
		if ind.UserID != s.user.ID {
			typing = true
			break
		}
	}
	s.mu.Lock()
	s.otherTyping = typing
	s.mu.Unlock()
}

// Messages returns the rendered view: the confirmed snapshot followed by
// still-pending optimistic entries.
func (s *ChatSession) Messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, 0, len(s.confirmed)+len(s.pending))
	out = append(out, s.confirmed...)
	out = append(out, s.pending...)
	return out
}

// OtherUserTyping reports whether the peer is currently typing.
func (s *ChatSession) OtherUserTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otherTyping
}

// Send performs an optimistic send: the message appears in the view
// immediately with status sending, the write runs, and the next confirmed
// snapshot replaces the optimistic entry. On failure the entry flips to
// status failed and remains visible for retry.
func (s *ChatSession) Send(ctx context.Context, req *models.SendMessageRequest) (*models.Message, error) {
	req.ChatID = s.chatID
	optimistic := &models.Message{
		ID:               uuid.NewString(),
		ChatID:           s.chatID,
		SenderID:         s.user.ID,
		SenderName:       s.user.UserName,
		SenderAvatar:     s.user.Avatar,
		Type:             req.Type,
		Content:          req.Content,
		Status:           models.StatusSending,
		CreatedAt:        time.Now().UTC(),
		ReplyToMessageID: req.ReplyToMessageID,
		Reactions:        []models.Reaction{},
		ReadBy:           []models.ReadReceipt{},
	}
	s.mu.Lock()
	s.pending = append(s.pending, optimistic)
	s.mu.Unlock()

	s.stopTypingNow(ctx)

	sent, err := s.messages.SendMessage(ctx, s.user, req)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		optimistic.Status = models.StatusFailed
		return optimistic, err
	}
	// Adopt the persisted id so the next snapshot reconciles this entry away.
	optimistic.ID = sent.ID
	optimistic.Status = sent.Status
	return sent, nil
}

// RetryFailed re-sends a failed optimistic entry and removes it from the
// pending list; the retry itself goes through Send and gets a fresh entry.
func (s *ChatSession) RetryFailed(ctx context.Context, tempID string) (*models.Message, error) {
	s.mu.Lock()
	var failed *models.Message
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.ID == tempID && p.Status == models.StatusFailed {
			failed = p
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	s.mu.Unlock()

	if failed == nil {
		return nil, chat.ErrEmptyMessage
	}
	return s.Send(ctx, &models.SendMessageRequest{
		ChatID:           s.chatID,
		Type:             failed.Type,
		Content:          failed.Content,
		ReplyToMessageID: failed.ReplyToMessageID,
	})
}

// KeystrokeTyped is called on every input change. The first keystroke sends
// a typing-start; each further one pushes the stop timer out, so the stop
// fires only after the debounce window of silence.
func (s *ChatSession) KeystrokeTyped(ctx context.Context) {
	s.mu.Lock()
	wasActive := s.typingActive
	s.typingActive = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.debounce, func() {
		s.stopTypingNow(context.Background())
	})
	s.mu.Unlock()

	if !wasActive {
		if err := s.presence.UpdateTypingStatus(ctx, s.user.ID, s.user.UserName, s.chatID, true); err != nil {
			s.log.Warnw("failed to signal typing start", "chatId", s.chatID, "error", err)
		}
	}
}

// stopTypingNow cancels the debounce and signals typing stop if it was up.
func (s *ChatSession) stopTypingNow(ctx context.Context) {
	s.mu.Lock()
	wasActive := s.typingActive
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.mu.Unlock()

	if wasActive {
		if err := s.presence.UpdateTypingStatus(ctx, s.user.ID, s.user.UserName, s.chatID, false); err != nil {
			s.log.Warnw("failed to signal typing stop", "chatId", s.chatID, "error", err)
		}
	}
}

// Close tears the session down: typing is cleared and both subscriptions are
// released. Safe to call more than once.
func (s *ChatSession) Close() {
	s.closeOnce.Do(func() {
		s.stopTypingNow(context.Background())
		if s.msgStream != nil {
			s.msgStream.Close()
		}
		if s.typingStream != nil {
			s.typingStream.Close()
		}
	})
}

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echochat-backend/internal/events"
	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store/storetest"
	"echochat-backend/internal/upload"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// stubUploader records uploads and can be told to fail.
type stubUploader struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (u *stubUploader) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.keys = append(u.keys, key)
	return "https://cdn.example.com/" + key, nil
}

// capturePublisher records emitted message events.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.MessageEvent
}

func (p *capturePublisher) PublishMessageEvent(_ context.Context, event events.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type testEnv struct {
	chats     *storetest.ChatStore
	messages  *storetest.MessageStore
	users     *storetest.UserStore
	bus       *realtime.MemoryBus
	uploader  *stubUploader
	publisher *capturePublisher

	chatSvc *ChatService
	msgSvc  *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		chats:     storetest.NewChatStore(),
		messages:  storetest.NewMessageStore(),
		users:     storetest.NewUserStore(),
		bus:       realtime.NewMemoryBus(),
		uploader:  &stubUploader{},
		publisher: &capturePublisher{},
	}
	log := zap.NewNop().Sugar()
	env.chatSvc = NewChatService(env.chats, env.users, env.bus, log)
	env.msgSvc = NewMessageService(env.messages, env.chats, env.bus, env.uploader, env.publisher, log)
	return env
}

func alice() *models.CurrentUser {
	return &models.CurrentUser{ID: "alice", UserName: "alice", FullName: "Alice A"}
}

func bob() *models.CurrentUser {
	return &models.CurrentUser{ID: "bob", UserName: "bob", FullName: "Bob B"}
}

// seedChat creates the alice/bob chat and returns it.
func seedChat(t *testing.T, env *testEnv) *models.Chat {
	t.Helper()
	chat, err := env.chatSvc.CreateChat(context.Background(), alice(), &models.CreateChatRequest{
		OtherUserID:   "bob",
		OtherUserName: "bob",
	})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	return chat
}

func sendText(t *testing.T, env *testEnv, sender *models.CurrentUser, chatID, content string) *models.Message {
	t.Helper()
	msg, err := env.msgSvc.SendMessage(context.Background(), sender, &models.SendMessageRequest{
		ChatID:  chatID,
		Type:    models.MessageTypeText,
		Content: content,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	return msg
}

func TestCreateChatDeterministicID(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.chatSvc.CreateChat(context.Background(), alice(), &models.CreateChatRequest{OtherUserID: "bob", OtherUserName: "bob"})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	second, err := env.chatSvc.CreateChat(context.Background(), bob(), &models.CreateChatRequest{OtherUserID: "alice", OtherUserName: "alice"})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same chat id from both sides, got %q and %q", first.ID, second.ID)
	}
	// The second call must not clobber the original document.
	if second.CreatedBy != "alice" {
		t.Errorf("expected creator alice to be preserved, got %q", second.CreatedBy)
	}
}

func TestCreateChatInvalidParticipants(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.chatSvc.CreateChat(context.Background(), alice(), &models.CreateChatRequest{OtherUserID: "alice"})
	if !errors.Is(err, ErrInvalidParticipants) {
		t.Errorf("self chat: want ErrInvalidParticipants, got %v", err)
	}

	_, err = env.chatSvc.CreateChat(context.Background(), alice(), &models.CreateChatRequest{OtherUserID: ""})
	if !errors.Is(err, ErrInvalidParticipants) {
		t.Errorf("empty peer: want ErrInvalidParticipants, got %v", err)
	}

	_, err = env.chatSvc.CreateChat(context.Background(), nil, &models.CreateChatRequest{OtherUserID: "bob"})
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Errorf("no user: want ErrAuthenticationRequired, got %v", err)
	}
}

func TestSendMessageFlow(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)

	chatEvents, cancelChats := env.bus.Subscribe(realtime.ChatsChannel())
	defer cancelChats()
	msgEvents, cancelMsgs := env.bus.Subscribe(realtime.MessagesChannel(chat.ID))
	defer cancelMsgs()

	msg := sendText(t, env, alice(), chat.ID, "hello bob")

	if msg.Status != models.StatusSent {
		t.Errorf("expected status sent, got %q", msg.Status)
	}

	stored, err := env.messages.GetMessageByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessageByID: %v", err)
	}
	if stored.Status != models.StatusSent {
		t.Errorf("stored status = %q, want sent", stored.Status)
	}

	updated, err := env.chats.GetChatByID(context.Background(), chat.ID)
	if err != nil {
		t.Fatalf("GetChatByID: %v", err)
	}
	if updated.LastMessage == nil || updated.LastMessage.ID != msg.ID {
		t.Fatalf("chat snapshot not updated: %+v", updated.LastMessage)
	}
	if updated.LastMessage.Content != "hello bob" {
		t.Errorf("snapshot content = %q", updated.LastMessage.Content)
	}
	if !updated.UpdatedAt.Equal(msg.CreatedAt) {
		t.Errorf("chat updatedAt = %v, want %v", updated.UpdatedAt, msg.CreatedAt)
	}

	select {
	case e := <-msgEvents:
		if e.Kind != realtime.EventMessageChanged || e.MessageID != msg.ID {
			t.Errorf("unexpected message event %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no message change published")
	}
	select {
	case e := <-chatEvents:
		if e.Kind != realtime.EventChatUpdated || e.ChatID != chat.ID {
			t.Errorf("unexpected chat event %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no chat change published")
	}

	if diff := cmp.Diff([]string{events.EventMessageSent}, env.publisher.types()); diff != "" {
		t.Errorf("downstream events mismatch (-want +got):\n%s", diff)
	}
}

func TestSendMessageRejectsUnsupportedAttachment(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)

	_, err := env.msgSvc.SendMessage(context.Background(), alice(), &models.SendMessageRequest{
		ChatID: chat.ID,
		Type:   models.MessageTypeFile,
		Attachments: []models.AttachmentUpload{
			{FileName: "report.pdf", MimeType: "application/pdf", Data: []byte("x")},
		},
	})
	if !errors.Is(err, upload.ErrUnsupportedAttachmentType) {
		t.Fatalf("want ErrUnsupportedAttachmentType, got %v", err)
	}

	// A rejected upload must leave nothing behind.
	msgs, err := env.messages.ListChatMessages(context.Background(), chat.ID, 50)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no persisted messages, got %d", len(msgs))
	}
	if len(env.uploader.keys) != 0 {
		t.Errorf("expected no uploads, got %v", env.uploader.keys)
	}
}

func TestSendMessageUploadFailureAbortsSend(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	env.uploader.err = errors.New("bucket unavailable")

	_, err := env.msgSvc.SendMessage(context.Background(), alice(), &models.SendMessageRequest{
		ChatID: chat.ID,
		Type:   models.MessageTypeImage,
		Attachments: []models.AttachmentUpload{
			{FileName: "photo.jpg", MimeType: "image/jpeg", Data: []byte("x")},
		},
	})
	if err == nil {
		t.Fatal("expected error from failed upload")
	}

	msgs, _ := env.messages.ListChatMessages(context.Background(), chat.ID, 50)
	if len(msgs) != 0 {
		t.Errorf("expected no persisted messages after failed upload, got %d", len(msgs))
	}
}

func TestSendMessageAttachmentsWithoutUploader(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	// No upload backend configured, as when S3 settings are absent.
	env.msgSvc = NewMessageService(env.messages, env.chats, env.bus, nil, env.publisher, zap.NewNop().Sugar())

	_, err := env.msgSvc.SendMessage(context.Background(), alice(), &models.SendMessageRequest{
		ChatID: chat.ID,
		Type:   models.MessageTypeImage,
		Attachments: []models.AttachmentUpload{
			{FileName: "photo.jpg", MimeType: "image/jpeg", Data: []byte("x")},
		},
	})
	if !errors.Is(err, ErrUploadsUnavailable) {
		t.Fatalf("want ErrUploadsUnavailable, got %v", err)
	}

	msgs, _ := env.messages.ListChatMessages(context.Background(), chat.ID, 50)
	if len(msgs) != 0 {
		t.Errorf("expected no persisted messages, got %d", len(msgs))
	}

	// Plain text keeps working without an upload backend.
	if _, err := env.msgSvc.SendMessage(context.Background(), alice(), &models.SendMessageRequest{
		ChatID:  chat.ID,
		Type:    models.MessageTypeText,
		Content: "hi",
	}); err != nil {
		t.Errorf("text send without uploader: %v", err)
	}
}

func TestSendMessageGuards(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)

	_, err := env.msgSvc.SendMessage(context.Background(), &models.CurrentUser{ID: "mallory", UserName: "mallory"}, &models.SendMessageRequest{
		ChatID:  chat.ID,
		Type:    models.MessageTypeText,
		Content: "hi",
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider: want ErrNotParticipant, got %v", err)
	}

	_, err = env.msgSvc.SendMessage(context.Background(), alice(), &models.SendMessageRequest{
		ChatID: chat.ID,
		Type:   models.MessageTypeText,
	})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty: want ErrEmptyMessage, got %v", err)
	}
}

func TestUpdateMessagePreservesPreviousContent(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	msg := sendText(t, env, alice(), chat.ID, "v1")

	edited, err := env.msgSvc.UpdateMessage(context.Background(), "alice", msg.ID, "v2")
	if err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
	if edited.Content != "v2" || edited.OriginalContent != "v1" || !edited.IsEdited {
		t.Errorf("first edit: content=%q original=%q edited=%v", edited.Content, edited.OriginalContent, edited.IsEdited)
	}

	// Only the immediately-previous version is kept.
	edited, err = env.msgSvc.UpdateMessage(context.Background(), "alice", msg.ID, "v3")
	if err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
	if edited.Content != "v3" || edited.OriginalContent != "v2" {
		t.Errorf("second edit: content=%q original=%q", edited.Content, edited.OriginalContent)
	}

	if _, err := env.msgSvc.UpdateMessage(context.Background(), "bob", msg.ID, "nope"); !errors.Is(err, ErrNotMessageSender) {
		t.Errorf("non-sender edit: want ErrNotMessageSender, got %v", err)
	}

	if err := env.msgSvc.DeleteMessage(context.Background(), "alice", msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if _, err := env.msgSvc.UpdateMessage(context.Background(), "alice", msg.ID, "v4"); !errors.Is(err, ErrMessageImmutable) {
		t.Errorf("edit after delete: want ErrMessageImmutable, got %v", err)
	}
}

func TestMarkMessageAsRead(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	msg := sendText(t, env, alice(), chat.ID, "hello")

	// Reading your own message is a no-op.
	if err := env.msgSvc.MarkMessageAsRead(context.Background(), "alice", msg.ID); err != nil {
		t.Fatalf("sender read: %v", err)
	}
	stored, _ := env.messages.GetMessageByID(context.Background(), msg.ID)
	if len(stored.ReadBy) != 0 {
		t.Fatalf("sender read must not create a receipt, got %+v", stored.ReadBy)
	}

	if err := env.msgSvc.MarkMessageAsRead(context.Background(), "bob", msg.ID); err != nil {
		t.Fatalf("peer read: %v", err)
	}
	// Repeat reads stay idempotent.
	if err := env.msgSvc.MarkMessageAsRead(context.Background(), "bob", msg.ID); err != nil {
		t.Fatalf("repeat read: %v", err)
	}

	stored, _ = env.messages.GetMessageByID(context.Background(), msg.ID)
	if len(stored.ReadBy) != 1 || stored.ReadBy[0].UserID != "bob" {
		t.Errorf("expected exactly one receipt from bob, got %+v", stored.ReadBy)
	}
	if stored.Status != models.StatusRead {
		t.Errorf("expected status read, got %q", stored.Status)
	}
}

func TestReactionsOnePerUser(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	msg := sendText(t, env, alice(), chat.ID, "hello")

	if err := env.msgSvc.AddReaction(context.Background(), bob(), msg.ID, "❤️"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	// Switching emoji replaces the previous reaction instead of stacking.
	if err := env.msgSvc.AddReaction(context.Background(), bob(), msg.ID, "👍"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	stored, _ := env.messages.GetMessageByID(context.Background(), msg.ID)
	if len(stored.Reactions) != 1 || stored.Reactions[0].Emoji != "👍" {
		t.Fatalf("expected single 👍 reaction, got %+v", stored.Reactions)
	}

	// Both participants reacting keeps one entry each.
	if err := env.msgSvc.AddReaction(context.Background(), alice(), msg.ID, "😂"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	stored, _ = env.messages.GetMessageByID(context.Background(), msg.ID)
	if len(stored.Reactions) != 2 {
		t.Fatalf("expected two reactions, got %+v", stored.Reactions)
	}

	if err := env.msgSvc.RemoveReaction(context.Background(), "bob", msg.ID); err != nil {
		t.Fatalf("RemoveReaction: %v", err)
	}
	stored, _ = env.messages.GetMessageByID(context.Background(), msg.ID)
	if len(stored.Reactions) != 1 || stored.Reactions[0].UserID != "alice" {
		t.Errorf("expected only alice's reaction, got %+v", stored.Reactions)
	}
}

func TestDeleteMessageUpdatesChatSnapshot(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	msg := sendText(t, env, alice(), chat.ID, "secret")

	if err := env.msgSvc.DeleteMessage(context.Background(), "bob", msg.ID); !errors.Is(err, ErrNotMessageSender) {
		t.Fatalf("non-sender delete: want ErrNotMessageSender, got %v", err)
	}
	if err := env.msgSvc.DeleteMessage(context.Background(), "alice", msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	stored, _ := env.messages.GetMessageByID(context.Background(), msg.ID)
	if !stored.IsDeleted || stored.Content != models.DeletedMessagePlaceholder {
		t.Errorf("delete not applied: %+v", stored)
	}

	updated, _ := env.chats.GetChatByID(context.Background(), chat.ID)
	if updated.LastMessage.Content != models.DeletedMessagePlaceholder {
		t.Errorf("chat snapshot still shows %q", updated.LastMessage.Content)
	}

	if diff := cmp.Diff([]string{events.EventMessageSent, events.EventMessageDeleted}, env.publisher.types()); diff != "" {
		t.Errorf("downstream events mismatch (-want +got):\n%s", diff)
	}
}

func TestRecallMessageSenderOnly(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)
	msg := sendText(t, env, alice(), chat.ID, "oops")

	if err := env.msgSvc.RecallMessage(context.Background(), "bob", msg.ID); !errors.Is(err, ErrNotMessageSender) {
		t.Fatalf("non-sender recall: want ErrNotMessageSender, got %v", err)
	}
	if err := env.msgSvc.RecallMessage(context.Background(), "alice", msg.ID); err != nil {
		t.Fatalf("RecallMessage: %v", err)
	}

	stored, _ := env.messages.GetMessageByID(context.Background(), msg.ID)
	if !stored.IsRecalled || stored.Content != "oops" {
		t.Errorf("recall must keep content: %+v", stored)
	}

	// Recall hides the message from the sender but not from the peer.
	forAlice, err := env.msgSvc.ListChatMessages(context.Background(), "alice", chat.ID, 50)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(forAlice) != 0 {
		t.Errorf("sender still sees recalled message: %+v", forAlice)
	}
	forBob, err := env.msgSvc.ListChatMessages(context.Background(), "bob", chat.ID, 50)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(forBob) != 1 {
		t.Errorf("peer should still see recalled message, got %d", len(forBob))
	}
}

func TestSendMessageWithAttachment(t *testing.T) {
	env := newTestEnv(t)
	chat := seedChat(t, env)

	msg, err := env.msgSvc.SendMessage(context.Background(), alice(), &models.SendMessageRequest{
		ChatID: chat.ID,
		Type:   models.MessageTypeImage,
		Attachments: []models.AttachmentUpload{
			{FileName: "photo.jpg", MimeType: "image/jpeg", Data: []byte("jpegdata"), Width: 640, Height: 480},
		},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if len(msg.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.URL == "" || att.FileName != "photo.jpg" || att.FileSize != int64(len("jpegdata")) {
		t.Errorf("attachment not filled in: %+v", att)
	}

	updated, _ := env.chats.GetChatByID(context.Background(), chat.ID)
	if updated.LastMessage.Content != "📷 Photo" {
		t.Errorf("image preview = %q", updated.LastMessage.Content)
	}
}

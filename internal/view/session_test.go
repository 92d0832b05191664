package view

import (
	"context"
	"testing"
	"time"

	"echochat-backend/internal/chat"
	"echochat-backend/internal/models"
	"echochat-backend/internal/presence"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store/storetest"

	"go.uber.org/zap"
)

type viewEnv struct {
	chats    *storetest.ChatStore
	messages *storetest.MessageStore
	typing   *storetest.TypingStore
	users    *storetest.UserStore
	bus      *realtime.MemoryBus
	manager  *realtime.Manager
	msgSvc   *chat.MessageService
	presence *presence.Coordinator
}

type noopUploader struct{}

func (noopUploader) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func newViewEnv(t *testing.T) *viewEnv {
	t.Helper()
	log := zap.NewNop().Sugar()
	env := &viewEnv{
		chats:    storetest.NewChatStore(),
		messages: storetest.NewMessageStore(),
		typing:   storetest.NewTypingStore(),
		users:    storetest.NewUserStore(),
		bus:      realtime.NewMemoryBus(),
	}
	env.manager = realtime.NewManager(env.chats, env.messages, env.typing, env.bus, log)
	env.msgSvc = chat.NewMessageService(env.messages, env.chats, env.bus, noopUploader{}, nil, log)
	env.presence = presence.NewCoordinator(env.users, env.typing, env.chats, env.bus, log)
	return env
}

func (env *viewEnv) seedChat(t *testing.T) *models.Chat {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Chat{
		ID:   models.PrivateChatID("alice", "bob"),
		Type: models.ChatTypePrivate,
		Participants: []models.ChatParticipant{
			{UserID: "alice", UserName: "alice", IsActive: true, JoinedAt: now},
			{UserID: "bob", UserName: "bob", IsActive: true, JoinedAt: now},
		},
		CreatedBy: "alice",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
		Settings:  models.DefaultChatSettings(),
	}
	created, err := env.chats.CreateChat(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	return created
}

func (env *viewEnv) newSession(t *testing.T, user *models.CurrentUser, chatID string) *ChatSession {
	t.Helper()
	s := NewChatSession(user, chatID, 50, env.msgSvc, env.presence, env.manager, zap.NewNop().Sugar())
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func aliceUser() *models.CurrentUser {
	return &models.CurrentUser{ID: "alice", UserName: "alice", FullName: "Alice A"}
}

func TestSendOptimisticThenReconciled(t *testing.T) {
	env := newViewEnv(t)
	c := env.seedChat(t)
	session := env.newSession(t, aliceUser(), c.ID)

	sent, err := session.Send(context.Background(), &models.SendMessageRequest{
		Type:    models.MessageTypeText,
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The optimistic entry is reconciled away once the confirmed snapshot
	// includes the persisted message, leaving exactly one copy.
	eventually(t, func() bool {
		msgs := session.Messages()
		return len(msgs) == 1 && msgs[0].ID == sent.ID && msgs[0].Status == models.StatusSent
	}, "message never reconciled to a single confirmed entry")
}

func TestFailedSendStaysVisible(t *testing.T) {
	env := newViewEnv(t)
	c := env.seedChat(t)
	session := env.newSession(t, &models.CurrentUser{ID: "mallory", UserName: "mallory"}, c.ID)

	failed, err := session.Send(context.Background(), &models.SendMessageRequest{
		Type:    models.MessageTypeText,
		Content: "hi",
	})
	if err == nil {
		t.Fatal("expected send to fail for non-participant")
	}
	if failed.Status != models.StatusFailed {
		t.Fatalf("expected failed status, got %q", failed.Status)
	}

	// Failed sends are not rolled back silently: the entry stays on screen.
	msgs := session.Messages()
	if len(msgs) != 1 || msgs[0].Status != models.StatusFailed {
		t.Errorf("expected visible failed entry, got %+v", msgs)
	}
}

func TestTypingDebounce(t *testing.T) {
	env := newViewEnv(t)
	c := env.seedChat(t)
	session := env.newSession(t, aliceUser(), c.ID)
	session.SetTypingDebounce(40 * time.Millisecond)

	session.KeystrokeTyped(context.Background())
	inds, err := env.typing.ListTyping(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ListTyping: %v", err)
	}
	if len(inds) != 1 || inds[0].UserID != "alice" {
		t.Fatalf("expected alice typing, got %+v", inds)
	}

	// Keystrokes inside the window keep the indicator alive.
	time.Sleep(25 * time.Millisecond)
	session.KeystrokeTyped(context.Background())
	time.Sleep(25 * time.Millisecond)
	inds, _ = env.typing.ListTyping(context.Background(), c.ID)
	if len(inds) != 1 {
		t.Fatalf("indicator dropped too early: %+v", inds)
	}

	// Silence past the debounce clears it.
	eventually(t, func() bool {
		inds, _ := env.typing.ListTyping(context.Background(), c.ID)
		return len(inds) == 0
	}, "typing indicator never cleared after debounce")
}

func TestOtherUserTyping(t *testing.T) {
	env := newViewEnv(t)
	c := env.seedChat(t)
	session := env.newSession(t, aliceUser(), c.ID)

	if session.OtherUserTyping() {
		t.Fatal("no one is typing yet")
	}

	if err := env.presence.UpdateTypingStatus(context.Background(), "bob", "bob", c.ID, true); err != nil {
		t.Fatalf("UpdateTypingStatus: %v", err)
	}
	eventually(t, session.OtherUserTyping, "peer typing never observed")

	// The viewer's own typing never counts as "other user typing".
	if err := env.presence.UpdateTypingStatus(context.Background(), "bob", "bob", c.ID, false); err != nil {
		t.Fatalf("UpdateTypingStatus: %v", err)
	}
	if err := env.presence.UpdateTypingStatus(context.Background(), "alice", "alice", c.ID, true); err != nil {
		t.Fatalf("UpdateTypingStatus: %v", err)
	}
	eventually(t, func() bool { return !session.OtherUserTyping() }, "own typing reported as peer typing")
}

func TestSessionCloseClearsTypingAndStreams(t *testing.T) {
	env := newViewEnv(t)
	c := env.seedChat(t)
	session := env.newSession(t, aliceUser(), c.ID)
	session.SetTypingDebounce(time.Minute)

	session.KeystrokeTyped(context.Background())
	session.Close()
	session.Close() // idempotent

	inds, _ := env.typing.ListTyping(context.Background(), c.ID)
	if len(inds) != 0 {
		t.Errorf("typing survived session close: %+v", inds)
	}

	eventually(t, func() bool {
		return env.bus.SubscriberCount(realtime.MessagesChannel(c.ID)) == 0 &&
			env.bus.SubscriberCount(realtime.TypingChannel(c.ID)) == 0
	}, "subscriptions survived session close")
}

func TestChatListRendering(t *testing.T) {
	env := newViewEnv(t)
	c := env.seedChat(t)

	now := time.Now().UTC()
	if err := env.users.CreateUser(context.Background(), &models.User{ID: "bob", UserName: "bob", Email: "bob@example.com", IsOnline: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	list := NewChatList(aliceUser(), 50, env.manager, env.users, zap.NewNop().Sugar())
	if err := list.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(list.Close)

	eventually(t, func() bool { return len(list.Items()) == 1 }, "chat list never rendered")
	item := list.Items()[0]
	if item.Title != "bob" || item.Preview != NoMessagesPlaceholder || !item.OtherOnline {
		t.Errorf("unexpected item: %+v", item)
	}

	// A new message refreshes the preview.
	last := &models.LastMessage{ID: "m1", Content: "hey", SenderID: "bob", SenderName: "bob", Type: models.MessageTypeText, Timestamp: now}
	if err := env.chats.SetLastMessage(context.Background(), c.ID, last, now); err != nil {
		t.Fatalf("SetLastMessage: %v", err)
	}
	if err := env.bus.Publish(context.Background(), realtime.ChatsChannel(), realtime.Event{Kind: realtime.EventChatUpdated, ChatID: c.ID}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	eventually(t, func() bool {
		items := list.Items()
		return len(items) == 1 && items[0].Preview == "hey"
	}, "chat list preview never refreshed")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"JustNow", now.Add(-20 * time.Second), "now"},
		{"Minutes", now.Add(-5 * time.Minute), "5m"},
		{"Hours", now.Add(-3 * time.Hour), "3h"},
		{"Yesterday", now.Add(-30 * time.Hour), "Yesterday"},
		{"Days", now.Add(-3 * 24 * time.Hour), "3d"},
		{"Older", now.Add(-30 * 24 * time.Hour), "Feb 8, 2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.at, now); got != tt.want {
				t.Errorf("RelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

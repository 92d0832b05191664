package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"echochat-backend/internal/models"
	"echochat-backend/internal/realtime"
	"echochat-backend/internal/store"
	"echochat-backend/internal/store/storetest"

	"go.uber.org/zap"
)

func newTestCoordinator() (*Coordinator, *storetest.UserStore, *storetest.TypingStore, *realtime.MemoryBus) {
	users := storetest.NewUserStore()
	typing := storetest.NewTypingStore()
	chats := storetest.NewChatStore()
	bus := realtime.NewMemoryBus()
	c := NewCoordinator(users, typing, chats, bus, zap.NewNop().Sugar())

	now := time.Now().UTC()
	chats.CreateChat(context.Background(), &models.Chat{
		ID:   "c1",
		Type: models.ChatTypePrivate,
		Participants: []models.ChatParticipant{
			{UserID: "alice", UserName: "alice", IsActive: true, JoinedAt: now},
			{UserID: "bob", UserName: "bob", IsActive: true, JoinedAt: now},
		},
		CreatedBy: "alice",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	})
	return c, users, typing, bus
}

func TestUpdateUserPresence(t *testing.T) {
	c, users, _, _ := newTestCoordinator()
	err := users.CreateUser(context.Background(), &models.User{ID: "alice", UserName: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := c.UpdateUserPresence(context.Background(), "alice", models.StatusOnline); err != nil {
		t.Fatalf("UpdateUserPresence: %v", err)
	}
	user, _ := users.GetUserByID(context.Background(), "alice")
	if !user.IsOnline {
		t.Error("expected user online")
	}

	before := time.Now().UTC()
	if err := c.UpdateUserPresence(context.Background(), "alice", models.StatusOffline); err != nil {
		t.Fatalf("UpdateUserPresence: %v", err)
	}
	user, _ = users.GetUserByID(context.Background(), "alice")
	if user.IsOnline {
		t.Error("expected user offline")
	}
	if user.LastSeen.Before(before.Add(-time.Second)) {
		t.Errorf("lastSeen not stamped: %v", user.LastSeen)
	}

	if err := c.UpdateUserPresence(context.Background(), "", models.StatusOnline); !errors.Is(err, ErrAuthenticationRequired) {
		t.Errorf("empty user: want ErrAuthenticationRequired, got %v", err)
	}
}

func TestUpdateTypingStatusPublishes(t *testing.T) {
	c, _, typing, bus := newTestCoordinator()

	events, cancel := bus.Subscribe(realtime.TypingChannel("c1"))
	defer cancel()

	if err := c.UpdateTypingStatus(context.Background(), "alice", "alice", "c1", true); err != nil {
		t.Fatalf("UpdateTypingStatus: %v", err)
	}
	inds, _ := typing.ListTyping(context.Background(), "c1")
	if len(inds) != 1 || !inds[0].IsTyping {
		t.Fatalf("expected active indicator, got %+v", inds)
	}

	select {
	case e := <-events:
		if e.Kind != realtime.EventTypingChanged || e.UserID != "alice" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("typing change not published")
	}

	// Stop deletes the record; stopping again stays a no-op.
	if err := c.UpdateTypingStatus(context.Background(), "alice", "alice", "c1", false); err != nil {
		t.Fatalf("UpdateTypingStatus stop: %v", err)
	}
	if err := c.UpdateTypingStatus(context.Background(), "alice", "alice", "c1", false); err != nil {
		t.Fatalf("repeated stop: %v", err)
	}
	inds, _ = typing.ListTyping(context.Background(), "c1")
	if len(inds) != 0 {
		t.Errorf("indicator not cleared: %+v", inds)
	}
}

func TestUpdateTypingStatusRequiresMembership(t *testing.T) {
	c, _, typing, _ := newTestCoordinator()

	err := c.UpdateTypingStatus(context.Background(), "mallory", "mallory", "c1", true)
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider typing: want ErrNotParticipant, got %v", err)
	}
	inds, _ := typing.ListTyping(context.Background(), "c1")
	if len(inds) != 0 {
		t.Errorf("outsider planted a typing record: %+v", inds)
	}

	err = c.UpdateTypingStatus(context.Background(), "alice", "alice", "missing", true)
	if !errors.Is(err, store.ErrChatNotFound) {
		t.Errorf("unknown chat: want ErrChatNotFound, got %v", err)
	}
}

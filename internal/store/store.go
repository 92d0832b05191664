package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with every other consumer of the document store.
// Renaming any of these breaks interoperability (e.g. notification pipelines
// key on the same collections and fields).
const (
	CollectionChats    = "chats"
	CollectionMessages = "messages"
	CollectionTyping   = "typing"
	CollectionUsers    = "users"
)

// Sentinel errors surfaced by the repositories.
var (
	ErrChatNotFound     = fmt.Errorf("chat not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrEmailExists      = fmt.Errorf("email already exists")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
)

// storeError wraps a driver failure so callers can detect ErrStoreUnavailable
// with errors.Is while keeping the underlying cause in the chain.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Store owns the connection to the realtime document database and hands out
// collection handles for chats, messages, typing indicators and users.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes the document store connection and verifies it with a
// ping before anything else is wired up.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storeError("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, storeError("ping", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Close tears down the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Chats() *mongo.Collection    { return s.db.Collection(CollectionChats) }
func (s *Store) Messages() *mongo.Collection { return s.db.Collection(CollectionMessages) }
func (s *Store) Typing() *mongo.Collection   { return s.db.Collection(CollectionTyping) }
func (s *Store) Users() *mongo.Collection    { return s.db.Collection(CollectionUsers) }

// EnsureIndexes creates the query indexes the subscription paths rely on.
// Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	messageIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("chat_created_idx"),
	}
	if _, err := s.Messages().Indexes().CreateOne(ctx, messageIdx); err != nil {
		return storeError("ensure message indexes", err)
	}

	chatIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "updatedAt", Value: -1}},
		Options: options.Index().SetName("updated_idx"),
	}
	if _, err := s.Chats().Indexes().CreateOne(ctx, chatIdx); err != nil {
		return storeError("ensure chat indexes", err)
	}

	typingIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "chatId", Value: 1}},
		Options: options.Index().SetName("typing_chat_idx"),
	}
	if _, err := s.Typing().Indexes().CreateOne(ctx, typingIdx); err != nil {
		return storeError("ensure typing indexes", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"time"

	"echochat-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatStore defines persistence operations for chats.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	GetChatByID(ctx context.Context, chatID string) (*models.Chat, error)
	ListRecentChats(ctx context.Context, limit int64) ([]*models.Chat, error)
	SetLastMessage(ctx context.Context, chatID string, last *models.LastMessage, at time.Time) error
	DeactivateChat(ctx context.Context, chatID string) error
}

// MongoChatStore implements ChatStore on the chats collection.
type MongoChatStore struct {
	coll *mongo.Collection
}

func NewMongoChatStore(s *Store) *MongoChatStore {
	return &MongoChatStore{coll: s.Chats()}
}

// CreateChat inserts the chat if no document with its id exists yet. The id
// is derived from the sorted participant pair, so two clients racing to start
// the same 1:1 conversation converge on a single document; the loser of the
// race simply reads back the winner's chat.
func (s *MongoChatStore) CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	filter := bson.M{"_id": chat.ID}
	update := bson.M{"$setOnInsert": chat}
	opts := options.Update().SetUpsert(true)

	if _, err := s.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return nil, storeError("create chat", err)
	}
	return s.GetChatByID(ctx, chat.ID)
}

func (s *MongoChatStore) GetChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.coll.FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChatNotFound
		}
		return nil, storeError("get chat by id", err)
	}
	return &chat, nil
}

// ListRecentChats returns up to limit chats ordered by updatedAt descending.
// The store cannot express "participants contains userId" as an efficient
// server-side predicate on an array of objects, so membership filtering is
// the subscription layer's job; the limit applies to this raw window.
func (s *MongoChatStore) ListRecentChats(ctx context.Context, limit int64) ([]*models.Chat, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(limit)
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeError("list recent chats", err)
	}
	defer cur.Close(ctx)

	chats := make([]*models.Chat, 0)
	for cur.Next(ctx) {
		var chat models.Chat
		if err := cur.Decode(&chat); err != nil {
			return nil, storeError("decode chat", err)
		}
		chats = append(chats, &chat)
	}
	if err := cur.Err(); err != nil {
		return nil, storeError("iterate chats", err)
	}
	return chats, nil
}

// SetLastMessage updates the denormalized lastMessage snapshot and bumps
// updatedAt. Callers must persist the message document first so chat-list
// readers that open the chat always find the referenced message.
func (s *MongoChatStore) SetLastMessage(ctx context.Context, chatID string, last *models.LastMessage, at time.Time) error {
	update := bson.M{"$set": bson.M{"lastMessage": last, "updatedAt": at}}
	res, err := s.coll.UpdateByID(ctx, chatID, update)
	if err != nil {
		return storeError("set last message", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeactivateChat flips isActive off. Chats are never hard-deleted.
func (s *MongoChatStore) DeactivateChat(ctx context.Context, chatID string) error {
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	res, err := s.coll.UpdateByID(ctx, chatID, update)
	if err != nil {
		return storeError("deactivate chat", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

package store

import (
	"context"

	"echochat-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TypingStore defines persistence operations for typing indicators. The
// records are ephemeral: existence means typing, stop is a delete.
type TypingStore interface {
	SetTyping(ctx context.Context, indicator *models.TypingIndicator) error
	ClearTyping(ctx context.Context, chatID, userID string) error
	ListTyping(ctx context.Context, chatID string) ([]*models.TypingIndicator, error)
}

// MongoTypingStore implements TypingStore on the typing collection.
type MongoTypingStore struct {
	coll *mongo.Collection
}

func NewMongoTypingStore(s *Store) *MongoTypingStore {
	return &MongoTypingStore{coll: s.Typing()}
}

// SetTyping creates or refreshes the (chat, user) record. Records are never
// updated in place by stop events; only the timestamp moves on repeat starts.
func (s *MongoTypingStore) SetTyping(ctx context.Context, indicator *models.TypingIndicator) error {
	indicator.ID = models.TypingIndicatorID(indicator.ChatID, indicator.UserID)
	indicator.IsTyping = true
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": indicator.ID}, indicator, opts); err != nil {
		return storeError("set typing", err)
	}
	return nil
}

// ClearTyping deletes the record. Deleting an already-absent record is a
// successful no-op: the stop may race the debounce timer's stop.
func (s *MongoTypingStore) ClearTyping(ctx context.Context, chatID, userID string) error {
	id := models.TypingIndicatorID(chatID, userID)
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return storeError("clear typing", err)
	}
	return nil
}

// ListTyping returns the raw set of active indicators for a chat. Callers
// filter out their own userId when rendering.
func (s *MongoTypingStore) ListTyping(ctx context.Context, chatID string) ([]*models.TypingIndicator, error) {
	cur, err := s.coll.Find(ctx, bson.M{"chatId": chatID, "isTyping": true})
	if err != nil {
		return nil, storeError("list typing", err)
	}
	defer cur.Close(ctx)

	indicators := make([]*models.TypingIndicator, 0)
	for cur.Next(ctx) {
		var ind models.TypingIndicator
		if err := cur.Decode(&ind); err != nil {
			return nil, storeError("decode typing indicator", err)
		}
		indicators = append(indicators, &ind)
	}
	if err := cur.Err(); err != nil {
		return nil, storeError("iterate typing indicators", err)
	}
	return indicators, nil
}

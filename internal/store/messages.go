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

// MessageStore defines persistence operations for messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessageByID(ctx context.Context, messageID string) (*models.Message, error)
	ListChatMessages(ctx context.Context, chatID string, limit int64) ([]*models.Message, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error
	UpdateMessageContent(ctx context.Context, messageID, content string, at time.Time) error
	SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error
	RecallMessage(ctx context.Context, messageID string, at time.Time) error
	AppendReadReceipt(ctx context.Context, messageID string, receipt models.ReadReceipt) error
	SetReaction(ctx context.Context, messageID string, reaction models.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID string) error
}

// MongoMessageStore implements MessageStore on the messages collection.
type MongoMessageStore struct {
	coll *mongo.Collection
}

func NewMongoMessageStore(s *Store) *MongoMessageStore {
	return &MongoMessageStore{coll: s.Messages()}
}

func (s *MongoMessageStore) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.Reactions == nil {
		message.Reactions = []models.Reaction{}
	}
	if message.ReadBy == nil {
		message.ReadBy = []models.ReadReceipt{}
	}
	if _, err := s.coll.InsertOne(ctx, message); err != nil {
		return storeError("create message", err)
	}
	return nil
}

func (s *MongoMessageStore) GetMessageByID(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	if err := s.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, storeError("get message by id", err)
	}
	return &msg, nil
}

// ListChatMessages returns the newest limit messages of a chat, unfiltered.
// Recall/delete visibility rules are applied by the subscription layer, which
// also re-sorts into chronological order.
func (s *MongoMessageStore) ListChatMessages(ctx context.Context, chatID string, limit int64) ([]*models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cur, err := s.coll.Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, storeError("list chat messages", err)
	}
	defer cur.Close(ctx)

	messages := make([]*models.Message, 0)
	for cur.Next(ctx) {
		var msg models.Message
		if err := cur.Decode(&msg); err != nil {
			return nil, storeError("decode message", err)
		}
		messages = append(messages, &msg)
	}
	if err := cur.Err(); err != nil {
		return nil, storeError("iterate messages", err)
	}
	return messages, nil
}

func (s *MongoMessageStore) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	update := bson.M{"$set": bson.M{"status": status}}
	res, err := s.coll.UpdateByID(ctx, messageID, update)
	if err != nil {
		return storeError("update message status", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// UpdateMessageContent edits the message body. The pipeline copies the
// current content into originalContent in the same atomic update, so only the
// immediately-previous version is recoverable, not the full history.
func (s *MongoMessageStore) UpdateMessageContent(ctx context.Context, messageID, content string, at time.Time) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"originalContent": "$content",
			"content":         content,
			"isEdited":        true,
			"updatedAt":       at,
		}}},
	}
	res, err := s.coll.UpdateByID(ctx, messageID, update)
	if err != nil {
		return storeError("update message content", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SoftDeleteMessage hides the message from every viewer and replaces its
// content with the fixed placeholder. The document itself is kept.
func (s *MongoMessageStore) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"isDeleted": true,
		"deletedAt": at,
		"content":   models.DeletedMessagePlaceholder,
	}}
	res, err := s.coll.UpdateByID(ctx, messageID, update)
	if err != nil {
		return storeError("soft delete message", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// RecallMessage marks the message recalled without touching its content.
// The sender-only suppression happens in the subscription layer.
func (s *MongoMessageStore) RecallMessage(ctx context.Context, messageID string, at time.Time) error {
	update := bson.M{"$set": bson.M{"isRecalled": true, "recalledAt": at}}
	res, err := s.coll.UpdateByID(ctx, messageID, update)
	if err != nil {
		return storeError("recall message", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// AppendReadReceipt adds the receipt and promotes status to read. The filter
// guards against double-append under concurrent readers; a zero match after
// the caller's own pre-checks means another device already recorded it, which
// is treated as success.
func (s *MongoMessageStore) AppendReadReceipt(ctx context.Context, messageID string, receipt models.ReadReceipt) error {
	filter := bson.M{
		"_id":      messageID,
		"senderId": bson.M{"$ne": receipt.UserID},
		"readBy":   bson.M{"$not": bson.M{"$elemMatch": bson.M{"userId": receipt.UserID}}},
	}
	update := bson.M{
		"$push": bson.M{"readBy": receipt},
		"$set":  bson.M{"status": models.StatusRead},
	}
	if _, err := s.coll.UpdateOne(ctx, filter, update); err != nil {
		return storeError("append read receipt", err)
	}
	return nil
}

// SetReaction installs the user's reaction in a single server-side update
// pipeline: any prior entry for the user is dropped and the new one appended
// atomically, so concurrent reactors on one message never overwrite each
// other. An identical (user, emoji) pair leaves the document untouched.
func (s *MongoMessageStore) SetReaction(ctx context.Context, messageID string, reaction models.Reaction) error {
	samePair := bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{"$$r.userId", reaction.UserID}},
		bson.M{"$eq": bson.A{"$$r.emoji", reaction.Emoji}},
	}}
	withoutUser := bson.M{"$filter": bson.M{
		"input": "$$existing",
		"as":    "r",
		"cond":  bson.M{"$ne": bson.A{"$$r.userId", reaction.UserID}},
	}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$let": bson.M{
				"vars": bson.M{"existing": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}}},
				"in": bson.M{"$cond": bson.A{
					bson.M{"$gt": bson.A{
						bson.M{"$size": bson.M{"$filter": bson.M{
							"input": "$$existing",
							"as":    "r",
							"cond":  samePair,
						}}},
						0,
					}},
					"$$existing",
					bson.M{"$concatArrays": bson.A{withoutUser, bson.A{bson.M{
						"userId":    reaction.UserID,
						"userName":  reaction.UserName,
						"emoji":     reaction.Emoji,
						"createdAt": reaction.CreatedAt,
					}}}},
				}},
			}},
		}}},
	}
	res, err := s.coll.UpdateByID(ctx, messageID, update)
	if err != nil {
		return storeError("set reaction", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// RemoveReaction drops the user's reaction entry, if any.
func (s *MongoMessageStore) RemoveReaction(ctx context.Context, messageID, userID string) error {
	update := bson.M{"$pull": bson.M{"reactions": bson.M{"userId": userID}}}
	res, err := s.coll.UpdateByID(ctx, messageID, update)
	if err != nil {
		return storeError("remove reaction", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

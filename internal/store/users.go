package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"echochat-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore defines persistence operations for users and their embedded
// presence state.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SearchUsers(ctx context.Context, query, excludeUserID string, limit int64) ([]*models.User, error)
	UpdatePresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// MongoUserStore implements UserStore on the users collection.
type MongoUserStore struct {
	coll *mongo.Collection
}

func NewMongoUserStore(s *Store) *MongoUserStore {
	return &MongoUserStore{coll: s.Users()}
}

// CreateUser inserts a new user, rejecting duplicate emails. The email check
// is a lookup rather than a unique index so the error maps cleanly onto
// ErrEmailExists without parsing driver write exceptions.
func (s *MongoUserStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.coll.FindOne(ctx, bson.M{"email": user.Email}).Err()
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return storeError("check existing email", err)
	}

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return storeError("create user", err)
	}
	return nil
}

func (s *MongoUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("get user by id", err)
	}
	return &user, nil
}

func (s *MongoUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("get user by email", err)
	}
	return &user, nil
}

// searchPattern builds a case-insensitive substring match. The query is
// quoted so regex metacharacters in user input stay literal.
func searchPattern(query string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
}

// SearchUsers matches userName or fullName case-insensitively, excluding the
// requesting user. Used when starting a new chat.
func (s *MongoUserStore) SearchUsers(ctx context.Context, query, excludeUserID string, limit int64) ([]*models.User, error) {
	pattern := searchPattern(query)
	filter := bson.M{
		"_id": bson.M{"$ne": excludeUserID},
		"$or": bson.A{
			bson.M{"userName": pattern},
			bson.M{"fullName": pattern},
		},
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, storeError("search users", err)
	}
	defer cur.Close(ctx)

	users := make([]*models.User, 0)
	for cur.Next(ctx) {
		var user models.User
		if err := cur.Decode(&user); err != nil {
			return nil, storeError("decode user", err)
		}
		users = append(users, &user)
	}
	if err := cur.Err(); err != nil {
		return nil, storeError("iterate users", err)
	}
	return users, nil
}

// UpdatePresence merges isOnline/lastSeen/updatedAt into the user record.
// Only the owning client writes its own presence, so last-write-wins needs no
// further coordination.
func (s *MongoUserStore) UpdatePresence(ctx context.Context, userID string, online bool, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"isOnline":  online,
		"lastSeen":  at,
		"updatedAt": at,
	}}
	res, err := s.coll.UpdateByID(ctx, userID, update)
	if err != nil {
		return storeError("update presence", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

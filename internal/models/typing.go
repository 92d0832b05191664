package models

import "time"

// TypingIndicator is an ephemeral record keyed by (chatId, userId). Its
// existence means the user is actively typing; stopping is a delete, never an
// in-place update.
type TypingIndicator struct {
	ID        string    `bson:"_id" json:"-"`
	ChatID    string    `bson:"chatId" json:"chatId"`
	UserID    string    `bson:"userId" json:"userId"`
	UserName  string    `bson:"userName" json:"userName"`
	IsTyping  bool      `bson:"isTyping" json:"isTyping"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// TypingIndicatorID derives the document id for the (chat, user) pair.
func TypingIndicatorID(chatID, userID string) string {
	return chatID + ":" + userID
}

// TypingRequest is the payload for signalling typing state over REST or WS.
type TypingRequest struct {
	ChatID   string `json:"chatId" binding:"required"`
	IsTyping bool   `json:"isTyping"`
}

package models

import (
	"sort"
	"strings"
	"time"
)

// ChatType discriminates conversation kinds. Only 1:1 chats exist today.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
)

// ChatParticipant is one member of a chat, denormalized for list rendering.
type ChatParticipant struct {
	UserID     string    `bson:"userId" json:"userId"`
	UserName   string    `bson:"userName" json:"userName"`
	UserAvatar string    `bson:"userAvatar,omitempty" json:"userAvatar,omitempty"`
	JoinedAt   time.Time `bson:"joinedAt" json:"joinedAt"`
	IsActive   bool      `bson:"isActive" json:"isActive"`
}

// ChatSettings are per-chat preferences and attachment limits.
type ChatSettings struct {
	MuteNotifications bool     `bson:"muteNotifications" json:"muteNotifications"`
	MaxFileSize       int64    `bson:"maxFileSize" json:"maxFileSize"`
	AllowedFileTypes  []string `bson:"allowedFileTypes" json:"allowedFileTypes"`
}

// DefaultChatSettings returns the settings applied to every new chat.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		MuteNotifications: false,
		MaxFileSize:       10 * 1024 * 1024,
		AllowedFileTypes:  []string{"image/jpeg", "image/png", "image/gif", "audio/mpeg"},
	}
}

// LastMessage is the denormalized snapshot a chat keeps of its newest message.
// It is display data only, never a live reference.
type LastMessage struct {
	ID         string      `bson:"id" json:"id"`
	Content    string      `bson:"content" json:"content"`
	SenderID   string      `bson:"senderId" json:"senderId"`
	SenderName string      `bson:"senderName" json:"senderName"`
	Type       MessageType `bson:"type" json:"type"`
	Timestamp  time.Time   `bson:"timestamp" json:"timestamp"`
}

// Chat is a private conversation between exactly two users.
type Chat struct {
	ID           string            `bson:"_id" json:"id"`
	Type         ChatType          `bson:"type" json:"type"`
	Participants []ChatParticipant `bson:"participants" json:"participants"`
	CreatedBy    string            `bson:"createdBy" json:"createdBy"`
	CreatedAt    time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time         `bson:"updatedAt" json:"updatedAt"`
	IsActive     bool              `bson:"isActive" json:"isActive"`
	LastMessage  *LastMessage      `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	Settings     ChatSettings      `bson:"settings" json:"settings"`
}

// HasParticipant reports whether userID is an active member of the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.IsActive {
			return true
		}
	}
	return false
}

// OtherParticipant returns the member that is not userID, for 1:1 rendering.
func (c *Chat) OtherParticipant(userID string) *ChatParticipant {
	for i := range c.Participants {
		if c.Participants[i].UserID != userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// PrivateChatID derives the deterministic id for a 1:1 chat from the sorted
// participant pair, so creation is naturally idempotent: any two users map to
// exactly one chat document regardless of who creates it first.
func PrivateChatID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return "private:" + strings.Join(pair, ":")
}

// CreateChatRequest defines the payload for starting a 1:1 chat.
type CreateChatRequest struct {
	OtherUserID   string `json:"otherUserId" binding:"required"`
	OtherUserName string `json:"otherUserName" binding:"required"`
}

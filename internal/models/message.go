package models

import (
	"time"
)

// MessageType indicates what kind of content a message carries.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeAudio MessageType = "audio"
	MessageTypeFile  MessageType = "file"
	MessageTypeEmoji MessageType = "emoji"
)

// MessageStatus indicates the delivery state of a message.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// DeletedMessagePlaceholder replaces the content of soft-deleted messages.
const DeletedMessagePlaceholder = "This message was deleted"

// MediaAttachment describes one uploaded file attached to a message.
type MediaAttachment struct {
	ID       string `bson:"id" json:"id"`
	URL      string `bson:"url" json:"url"`
	FileName string `bson:"fileName" json:"fileName"`
	FileSize int64  `bson:"fileSize" json:"fileSize"`
	MimeType string `bson:"mimeType" json:"mimeType"`
	Width    int    `bson:"width,omitempty" json:"width,omitempty"`
	Height   int    `bson:"height,omitempty" json:"height,omitempty"`
	Duration int    `bson:"duration,omitempty" json:"duration,omitempty"`
}

// Reaction is one user's emoji reaction on a message. A user holds at most
// one reaction per message; the newest one wins.
type Reaction struct {
	UserID    string    `bson:"userId" json:"userId"`
	UserName  string    `bson:"userName" json:"userName"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// ReadReceipt records that a user other than the sender has read a message.
type ReadReceipt struct {
	UserID string    `bson:"userId" json:"userId"`
	ReadAt time.Time `bson:"readAt" json:"readAt"`
}

// Message is a single unit of communication within exactly one chat.
type Message struct {
	ID               string            `bson:"_id" json:"id"`
	ChatID           string            `bson:"chatId" json:"chatId"`
	SenderID         string            `bson:"senderId" json:"senderId"`
	SenderName       string            `bson:"senderName" json:"senderName"`
	SenderAvatar     string            `bson:"senderAvatar,omitempty" json:"senderAvatar,omitempty"`
	Type             MessageType       `bson:"type" json:"type"`
	Content          string            `bson:"content" json:"content"`
	Attachments      []MediaAttachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Status           MessageStatus     `bson:"status" json:"status"`
	CreatedAt        time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt        *time.Time        `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	IsEdited         bool              `bson:"isEdited" json:"isEdited"`
	OriginalContent  string            `bson:"originalContent,omitempty" json:"originalContent,omitempty"`
	ReplyToMessageID string            `bson:"replyToMessageId,omitempty" json:"replyToMessageId,omitempty"`
	Reactions        []Reaction        `bson:"reactions" json:"reactions"`
	ReadBy           []ReadReceipt     `bson:"readBy" json:"readBy"`
	IsDeleted        bool              `bson:"isDeleted" json:"isDeleted"`
	DeletedAt        *time.Time        `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	IsRecalled       bool              `bson:"isRecalled" json:"isRecalled"`
	RecalledAt       *time.Time        `bson:"recalledAt,omitempty" json:"recalledAt,omitempty"`
}

// ReadBySet reports whether userID already appears in the readBy list.
func (m *Message) ReadBySet(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// ReactionBy returns userID's reaction, or nil.
func (m *Message) ReactionBy(userID string) *Reaction {
	for i := range m.Reactions {
		if m.Reactions[i].UserID == userID {
			return &m.Reactions[i]
		}
	}
	return nil
}

// AttachmentUpload is the client-side description of a file to attach. The
// bytes are uploaded before the message document is persisted; URL and ID are
// assigned by the upload step.
type AttachmentUpload struct {
	FileName string `json:"fileName" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
	Data     []byte `json:"data"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// SendMessageRequest is the payload for sending a message into a chat.
type SendMessageRequest struct {
	ChatID           string             `json:"chatId" binding:"required"`
	Type             MessageType        `json:"type" binding:"required"`
	Content          string             `json:"content"`
	Attachments      []AttachmentUpload `json:"attachments,omitempty"`
	ReplyToMessageID string             `json:"replyToMessageId,omitempty"`
}

// UpdateMessageRequest is the payload for editing a message body.
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required,max=4096"`
}

// ReactionRequest is the payload for adding or changing a reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

package websocket

import (
	"echochat-backend/internal/models"
)

// Inbound message types (client -> server).
const (
	MessageTypeSubscribeChats   = "subscribe_chats"   // open the chat-list stream
	MessageTypeUnsubscribeChats = "unsubscribe_chats" // close the chat-list stream
	MessageTypeSubscribeChat    = "subscribe_chat"    // open message+typing streams for one chat
	MessageTypeUnsubscribeChat  = "unsubscribe_chat"  // close them again
	MessageTypeNewMessage       = "new_message"       // send a chat message
	MessageTypeTypingIndicator  = "typing_indicator"  // typing start/stop
	MessageTypePresence         = "presence"          // explicit online/offline
)

// Outbound message types (server -> client).
const (
	MessageTypeChatsSnapshot    = "chats_snapshot"    // full chat list
	MessageTypeMessagesSnapshot = "messages_snapshot" // full visible message list for a chat
	MessageTypeTypingSnapshot   = "typing_snapshot"   // active typing indicators for a chat
	MessageTypeMessageSentAck   = "message_sent_ack"  // server processed a new_message
	MessageTypeError            = "error"
)

// WebSocketMessage is a generic wrapper for all messages sent over WebSocket.
// The `Type` field determines how the `Payload` is interpreted.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// SubscribePayload selects the chat a subscribe/unsubscribe applies to.
type SubscribePayload struct {
	ChatID string `json:"chatId"`
	Limit  int64  `json:"limit,omitempty"`
}

// NewMessagePayload is the payload for sending a new chat message. The
// client may include a temporary id so it can match the ack to its
// optimistic entry.
type NewMessagePayload struct {
	ChatID           string             `json:"chatId"`
	Type             models.MessageType `json:"type"`
	Content          string             `json:"content"`
	ReplyToMessageID string             `json:"replyToMessageId,omitempty"`
	ClientTempID     *string            `json:"clientTempId,omitempty"`
}

// MessageSentAckPayload confirms the message was saved and carries its
// server-assigned id and timestamp.
type MessageSentAckPayload struct {
	ClientTempID *string              `json:"clientTempId,omitempty"`
	ServerMsgID  string               `json:"serverMsgId"`
	ChatID       string               `json:"chatId"`
	Timestamp    models.JSONTime      `json:"timestamp"`
	Status       models.MessageStatus `json:"status"`
}

// MessagesSnapshotPayload carries the full visible message list of a chat.
type MessagesSnapshotPayload struct {
	ChatID   string            `json:"chatId"`
	Messages []*models.Message `json:"messages"`
}

// TypingSnapshotPayload carries every active typing indicator for a chat.
type TypingSnapshotPayload struct {
	ChatID     string                    `json:"chatId"`
	Indicators []*models.TypingIndicator `json:"indicators"`
}

// TypingIndicatorPayload signals typing start/stop for the sending user.
type TypingIndicatorPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

// PresencePayload signals an explicit presence change.
type PresencePayload struct {
	Status models.UserStatus `json:"status"`
}

// ErrorPayload is used for sending error details over WebSocket.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"echochat-backend/internal/chat"
	"echochat-backend/internal/models"
	"echochat-backend/internal/presence"
	"echochat-backend/internal/realtime"

	"go.uber.org/zap"
)

// Hub maintains active WebSocket clients and routes their messages to the
// chat services and subscription manager. Stream payloads flow back to
// clients directly from per-subscription forwarder goroutines; the hub loop
// only handles connection lifecycle and inbound traffic.
type Hub struct {
	clients    map[string]map[*Client]bool
	clientsMux sync.RWMutex

	processMessage chan HubMessage
	register       chan *Client
	unregister     chan *Client

	manager  *realtime.Manager
	messages *chat.MessageService
	presence *presence.Coordinator

	chatListLimit int64
	messageLimit  int64
	log           *zap.SugaredLogger
}

// NewHub returns a Hub wired to the provided services.
func NewHub(manager *realtime.Manager, messages *chat.MessageService, pres *presence.Coordinator, chatListLimit, messageLimit int64, log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:        make(map[string]map[*Client]bool),
		processMessage: make(chan HubMessage),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		manager:        manager,
		messages:       messages,
		presence:       pres,
		chatListLimit:  chatListLimit,
		messageLimit:   messageLimit,
		log:            log,
	}
}

// Run processes hub events until the process exits.
func (h *Hub) Run() {
	h.log.Infow("websocket hub starting")
	for {
		select {
		case client := <-h.register:
			h.clientsMux.Lock()
			if _, ok := h.clients[client.user.ID]; !ok {
				h.clients[client.user.ID] = make(map[*Client]bool)
			}
			h.clients[client.user.ID][client] = true
			first := len(h.clients[client.user.ID]) == 1
			h.clientsMux.Unlock()

			if first {
				h.setPresence(client.user.ID, models.StatusOnline)
			}

		case client := <-h.unregister:
			h.clientsMux.Lock()
			last := false
			if userClients, ok := h.clients[client.user.ID]; ok {
				if _, clientExists := userClients[client]; clientExists {
					close(client.send)
					delete(userClients, client)
					if len(userClients) == 0 {
						delete(h.clients, client.user.ID)
						last = true
					}
				}
			}
			h.clientsMux.Unlock()

			client.closeSubscriptions()
			if last {
				h.setPresence(client.user.ID, models.StatusOffline)
			}

		case hubMsg := <-h.processMessage:
			h.handleIncomingMessage(hubMsg.client, hubMsg.rawJSON)
		}
	}
}

// setPresence tracks the connection-derived presence: first socket of a user
// flips them online, last socket gone flips them offline.
func (h *Hub) setPresence(userID string, status models.UserStatus) {
	if err := h.presence.UpdateUserPresence(context.Background(), userID, status); err != nil {
		h.log.Warnw("failed to update connection presence", "userId", userID, "status", status, "error", err)
	}
}

func (h *Hub) handleIncomingMessage(senderClient *Client, rawJSON []byte) {
	var wsMsg WebSocketMessage
	if err := json.Unmarshal(rawJSON, &wsMsg); err != nil {
		senderClient.SendMessage(MessageTypeError, ErrorPayload{Message: "Invalid message format"})
		return
	}

	ctx := context.Background()

	switch wsMsg.Type {
	case MessageTypeSubscribeChats:
		h.handleSubscribeChats(ctx, senderClient)

	case MessageTypeUnsubscribeChats:
		senderClient.setChatListStream(nil)

	case MessageTypeSubscribeChat:
		var payload SubscribePayload
		if !decodePayload(senderClient, wsMsg.Payload, &payload) {
			return
		}
		h.handleSubscribeChat(ctx, senderClient, payload)

	case MessageTypeUnsubscribeChat:
		var payload SubscribePayload
		if !decodePayload(senderClient, wsMsg.Payload, &payload) {
			return
		}
		senderClient.closeChatStreams(payload.ChatID)

	case MessageTypeNewMessage:
		var payload NewMessagePayload
		if !decodePayload(senderClient, wsMsg.Payload, &payload) {
			return
		}
		h.handleNewChatMessage(ctx, senderClient, payload)

	case MessageTypeTypingIndicator:
		var payload TypingIndicatorPayload
		if !decodePayload(senderClient, wsMsg.Payload, &payload) {
			return
		}
		err := h.presence.UpdateTypingStatus(ctx, senderClient.user.ID, senderClient.user.UserName, payload.ChatID, payload.IsTyping)
		if err != nil {
			if errors.Is(err, presence.ErrNotParticipant) {
				senderClient.SendMessage(MessageTypeError, ErrorPayload{Message: "Not a participant of this chat"})
			} else {
				senderClient.SendMessage(MessageTypeError, ErrorPayload{Message: "Failed to update typing status"})
			}
		}

	case MessageTypePresence:
		var payload PresencePayload
		if !decodePayload(senderClient, wsMsg.Payload, &payload) {
			return
		}
		if err := h.presence.UpdateUserPresence(ctx, senderClient.user.ID, payload.Status); err != nil {
			senderClient.SendMessage(MessageTypeError, ErrorPayload{Message: "Failed to update presence"})
		}

	default:
		senderClient.SendMessage(MessageTypeError, ErrorPayload{Message: "Unknown message type"})
	}
}

func decodePayload(client *Client, raw interface{}, dst interface{}) bool {
	payloadBytes, _ := json.Marshal(raw)
	if err := json.Unmarshal(payloadBytes, dst); err != nil {
		client.SendMessage(MessageTypeError, ErrorPayload{Message: "Invalid payload"})
		return false
	}
	return true
}

// handleSubscribeChats opens the chat-list stream for this connection and
// forwards every snapshot until the stream closes.
func (h *Hub) handleSubscribeChats(ctx context.Context, client *Client) {
	stream, err := h.manager.UserChats(ctx, client.user.ID, h.chatListLimit)
	if err != nil {
		h.log.Errorw("failed to open chat-list stream", "userId", client.user.ID, "error", err)
		client.SendMessage(MessageTypeError, ErrorPayload{Message: "Failed to subscribe to chats"})
		return
	}
	client.setChatListStream(stream)

	go func() {
		for snap := range stream.C {
			client.SendMessage(MessageTypeChatsSnapshot, snap)
		}
	}()
}

// handleSubscribeChat opens the message and typing streams for one chat.
// Both live exactly as long as the subscription (or the connection).
func (h *Hub) handleSubscribeChat(ctx context.Context, client *Client, payload SubscribePayload) {
	if payload.ChatID == "" {
		client.SendMessage(MessageTypeError, ErrorPayload{Message: "chatId is required"})
		return
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = h.messageLimit
	}

	msgStream, err := h.manager.ChatMessages(ctx, payload.ChatID, limit, client.user.ID)
	if err != nil {
		h.log.Errorw("failed to open message stream", "chatId", payload.ChatID, "error", err)
		client.SendMessage(MessageTypeError, ErrorPayload{Message: "Failed to subscribe to chat"})
		return
	}
	typStream, err := h.manager.TypingIndicators(ctx, payload.ChatID)
	if err != nil {
		msgStream.Close()
		h.log.Errorw("failed to open typing stream", "chatId", payload.ChatID, "error", err)
		client.SendMessage(MessageTypeError, ErrorPayload{Message: "Failed to subscribe to chat"})
		return
	}
	client.setChatStreams(payload.ChatID, msgStream, typStream)

	go func() {
		for snap := range msgStream.C {
			client.SendMessage(MessageTypeMessagesSnapshot, MessagesSnapshotPayload{
				ChatID:   payload.ChatID,
				Messages: snap,
			})
		}
	}()
	go func() {
		for snap := range typStream.C {
			client.SendMessage(MessageTypeTypingSnapshot, TypingSnapshotPayload{
				ChatID:     payload.ChatID,
				Indicators: snap,
			})
		}
	}()
}

func (h *Hub) handleNewChatMessage(ctx context.Context, senderClient *Client, payload NewMessagePayload) {
	req := &models.SendMessageRequest{
		ChatID:           payload.ChatID,
		Type:             payload.Type,
		Content:          payload.Content,
		ReplyToMessageID: payload.ReplyToMessageID,
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	msg, err := h.messages.SendMessage(ctx, senderClient.user, req)
	if err != nil {
		h.log.Warnw("websocket send failed", "chatId", payload.ChatID, "userId", senderClient.user.ID, "error", err)
		senderClient.SendMessage(MessageTypeError, ErrorPayload{Message: "Failed to send message"})
		return
	}

	senderClient.SendMessage(MessageTypeMessageSentAck, MessageSentAckPayload{
		ClientTempID: payload.ClientTempID,
		ServerMsgID:  msg.ID,
		ChatID:       msg.ChatID,
		Timestamp:    models.JSONTime(msg.CreatedAt),
		Status:       msg.Status,
	})
}

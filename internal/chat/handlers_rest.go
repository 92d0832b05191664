package chat

import (
	"errors"
	"net/http"
	"strconv"

	"echochat-backend/internal/middleware"
	"echochat-backend/internal/models"
	"echochat-backend/internal/presence"
	"echochat-backend/internal/store"
	"echochat-backend/internal/upload"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the chat and message HTTP API. Realtime consumers use the
// websocket surface instead; these endpoints serve one-shot reads and every
// mutation.
type Handler struct {
	chats    *ChatService
	messages *MessageService
	presence *presence.Coordinator
	users    store.UserStore
	log      *zap.SugaredLogger
}

func NewHandler(chats *ChatService, messages *MessageService, pres *presence.Coordinator, users store.UserStore, log *zap.SugaredLogger) *Handler {
	return &Handler{
		chats:    chats,
		messages: messages,
		presence: pres,
		users:    users,
		log:      log,
	}
}

// RegisterRoutes mounts the chat API under the given (already authenticated)
// route group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chats", h.CreateChat)
	rg.GET("/chats", h.ListChats)
	rg.GET("/chats/:id", h.GetChat)
	rg.DELETE("/chats/:id", h.DeactivateChat)
	rg.GET("/chats/:id/messages", h.ListMessages)

	rg.POST("/messages", h.SendMessage)
	rg.PATCH("/messages/:id", h.UpdateMessage)
	rg.DELETE("/messages/:id", h.DeleteMessage)
	rg.POST("/messages/:id/recall", h.RecallMessage)
	rg.POST("/messages/:id/read", h.MarkMessageAsRead)
	rg.PUT("/messages/:id/reaction", h.AddReaction)
	rg.DELETE("/messages/:id/reaction", h.RemoveReaction)

	rg.POST("/typing", h.UpdateTyping)
	rg.PUT("/presence", h.UpdatePresence)
}

// currentUser resolves the authenticated user's identity for denormalized
// sender fields.
func (h *Handler) currentUser(c *gin.Context) (*models.CurrentUser, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User associated with token not found"})
			return nil, false
		}
		h.log.Errorw("failed to resolve current user", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
		return nil, false
	}
	return &models.CurrentUser{
		ID:       user.ID,
		UserName: user.UserName,
		FullName: user.FullName,
		Avatar:   user.Avatar,
	}, true
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req models.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	current, ok := h.currentUser(c)
	if !ok {
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), current, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidParticipants) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat participants"})
			return
		}
		h.log.Errorw("failed to create chat", "userId", current.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat"})
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *Handler) ListChats(c *gin.Context) {
	userID := middleware.UserID(c)
	chats, err := h.chats.ListUserChats(c.Request.Context(), userID, listLimit(c, 50))
	if err != nil {
		h.log.Errorw("failed to list chats", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *Handler) GetChat(c *gin.Context) {
	userID := middleware.UserID(c)
	chat, err := h.chats.GetChat(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) DeactivateChat(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.chats.DeactivateChat(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deactivated"})
}

func (h *Handler) ListMessages(c *gin.Context) {
	userID := middleware.UserID(c)
	messages, err := h.messages.ListChatMessages(c.Request.Context(), userID, c.Param("id"), listLimit(c, 100))
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	current, ok := h.currentUser(c)
	if !ok {
		return
	}

	msg, err := h.messages.SendMessage(c.Request.Context(), current, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message has no content"})
		case errors.Is(err, upload.ErrUnsupportedAttachmentType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported attachment type"})
		case errors.Is(err, ErrUploadsUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Attachment uploads are not available"})
		case errors.Is(err, ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this chat"})
		case errors.Is(err, store.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		default:
			h.log.Errorw("failed to send message", "chatId", req.ChatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) UpdateMessage(c *gin.Context) {
	var req models.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	msg, err := h.messages.UpdateMessage(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		h.respondMessageError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.messages.DeleteMessage(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondMessageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

func (h *Handler) RecallMessage(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.messages.RecallMessage(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondMessageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message recalled"})
}

func (h *Handler) MarkMessageAsRead(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.messages.MarkMessageAsRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondMessageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Read receipt recorded"})
}

func (h *Handler) AddReaction(c *gin.Context) {
	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	current, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.messages.AddReaction(c.Request.Context(), current, c.Param("id"), req.Emoji); err != nil {
		h.respondMessageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reaction set"})
}

func (h *Handler) RemoveReaction(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.messages.RemoveReaction(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondMessageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reaction removed"})
}

func (h *Handler) UpdateTyping(c *gin.Context) {
	var req models.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	current, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.presence.UpdateTypingStatus(c.Request.Context(), current.ID, current.UserName, req.ChatID, req.IsTyping); err != nil {
		switch {
		case errors.Is(err, store.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		case errors.Is(err, presence.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this chat"})
		default:
			h.log.Errorw("failed to update typing status", "chatId", req.ChatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update typing status"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Typing status updated"})
}

func (h *Handler) UpdatePresence(c *gin.Context) {
	var req models.PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	userID := middleware.UserID(c)
	if err := h.presence.UpdateUserPresence(c.Request.Context(), userID, req.Status); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.log.Errorw("failed to update presence", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Presence updated"})
}

func (h *Handler) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	case errors.Is(err, ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this chat"})
	default:
		h.log.Errorw("chat operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat operation failed"})
	}
}

func (h *Handler) respondMessageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
	case errors.Is(err, ErrNotMessageSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the sender may do this"})
	case errors.Is(err, ErrMessageImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "Message can no longer be modified"})
	case errors.Is(err, ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message has no content"})
	default:
		h.log.Errorw("message operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Message operation failed"})
	}
}

func listLimit(c *gin.Context, fallback int64) int64 {
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 500 {
			return parsed
		}
	}
	return fallback
}

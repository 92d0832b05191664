package user

import (
	"errors"
	"net/http"
	"strconv"

	"echochat-backend/internal/middleware"
	"echochat-backend/internal/models"
	"echochat-backend/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler exposes user-related HTTP handlers.
type UserHandler struct {
	userStore store.UserStore
	log       *zap.SugaredLogger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(userStore store.UserStore, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{userStore: userStore, log: log}
}

// GetUserByID returns the public profile for a user.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	user, err := h.userStore.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.log.Errorw("failed to get user", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user information"})
		return
	}

	c.JSON(http.StatusOK, user.ToPublicUser())
}

// SearchUsers matches users by userName or fullName for the new-chat screen.
// The requesting user is excluded from the results.
func (h *UserHandler) SearchUsers(c *gin.Context) {
	searchQuery := c.Query("search")
	if searchQuery == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query parameter is required"})
		return
	}

	limit := int64(20)
	if size := c.DefaultQuery("limit", ""); size != "" {
		if parsed, err := strconv.Atoi(size); err == nil && parsed > 0 && parsed <= 50 {
			limit = int64(parsed)
		}
	}

	users, err := h.userStore.SearchUsers(c.Request.Context(), searchQuery, middleware.UserID(c), limit)
	if err != nil {
		h.log.Errorw("user search failed", "query", searchQuery, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	results := make([]*models.PublicUser, 0, len(users))
	for _, u := range users {
		results = append(results, u.ToPublicUser())
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}

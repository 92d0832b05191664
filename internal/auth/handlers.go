package auth

import (
	"errors"
	"net/http"
	"time"

	"echochat-backend/internal/models"
	"echochat-backend/internal/store"
	"echochat-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userStore store.UserStore
	log       *zap.SugaredLogger
}

func NewAuthHandler(userStore store.UserStore, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		userStore: userStore,
		log:       log,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		h.log.Errorw("failed to hash password", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process registration"})
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:             uuid.NewString(),
		UserName:       req.UserName,
		FullName:       req.FullName,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		IsOnline:       true,
		LastSeen:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = h.userStore.CreateUser(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}
		h.log.Errorw("failed to create user", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	token, err := utils.GenerateJWT(user.ID)
	if err != nil {
		h.log.Errorw("failed to generate token", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration successful, but failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    user.ToPublicUser(),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	user, err := h.userStore.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.log.Errorw("failed to load user for login", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.HashedPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := utils.GenerateJWT(user.ID)
	if err != nil {
		h.log.Errorw("failed to generate token", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login successful, but failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user.ToPublicUser(),
	})
}

func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User ID not found in context"})
		return
	}

	user, err := h.userStore.GetUserByID(c.Request.Context(), userID.(string))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User associated with token not found"})
			return
		}
		h.log.Errorw("failed to load current user", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user information"})
		return
	}

	c.JSON(http.StatusOK, user.ToPublicUser())
}

package websocket

import (
	"net/http"

	"echochat-backend/internal/models"
	"echochat-backend/internal/store"
	"echochat-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader is used to upgrade HTTP connections to WebSocket connections.
// CheckOrigin allows all origins for development purposes.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler handles WebSocket connection requests.
type WSHandler struct {
	hub       *Hub
	userStore store.UserStore
	log       *zap.SugaredLogger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *Hub, userStore store.UserStore, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		userStore: userStore,
		log:       log,
	}
}

// HandleWebSocketConnection upgrades HTTP GET requests to WebSocket
// connections. It expects a JWT token as a query parameter for
// authentication (e.g., /ws?token=YOUR_JWT_HERE).
func (h *WSHandler) HandleWebSocketConnection(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := utils.ValidateJWT(tokenString)
	if err != nil {
		h.log.Warnw("websocket auth failed", "error", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	user, err := h.userStore.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Warnw("websocket user lookup failed", "userId", claims.UserID, "error", err)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("websocket upgrade failed", "userId", user.ID, "error", err)
		return
	}

	client := NewClient(h.hub, conn, &models.CurrentUser{
		ID:       user.ID,
		UserName: user.UserName,
		FullName: user.FullName,
		Avatar:   user.Avatar,
	})

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

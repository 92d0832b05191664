package middleware

import (
	"net/http"
	"strings"

	"echochat-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// AuthMiddleware validates the bearer token and stores the authenticated
// user id on the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is not provided"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be 'Bearer <token>'"})
			return
		}

		claims, err := utils.ValidateJWT(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID extracts the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

package api

import (
	"context"
	"messenger/auth"
	"messenger/domain"
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.UserID, error)
}

// AuthMiddleware accepts a bearer header, the token cookie or the token query parameter.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization required"})
			return
		}
		userID, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID extracts the authenticated user from context
func GetUserID(c *gin.Context) domain.UserID {
	if userID, exists := c.Get(userIDKey); exists {
		return userID.(domain.UserID)
	}
	return ""
}

// CORS middleware for browser clients
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

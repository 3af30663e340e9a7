package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
)

type contextKey string

const (
	userContextKey      contextKey = "user"
	sessionIDContextKey contextKey = "session_id"
)

// Authenticator is the slice of service.AuthService the middleware needs.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *service.Claims, error)
}

// RequireAuth accepts a bearer token, or a token query parameter for clients
// such as browsers opening a websocket, which cannot set headers.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidToken),
				errors.Is(err, service.ErrSessionExpired),
				errors.Is(err, service.ErrUserNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate session"})
			}
			return
		}

		// Authenticate already validated the jti.
		sessionID, _ := claims.SessionID()

		ctx := context.WithValue(c.Request.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &user.ID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireAdminAPIKey guards operator routes. The key comes from X-Admin-API-Key
// or a bearer Authorization header.
func RequireAdminAPIKey(adminAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminAPIKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = bearerToken(c)
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(adminAPIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}

		c.Next()
	}
}

func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

func GetSessionID(ctx context.Context) int64 {
	sessionID, _ := ctx.Value(sessionIDContextKey).(int64)
	return sessionID
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

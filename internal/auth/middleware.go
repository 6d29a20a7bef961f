package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/users"
)

const (
	userKey     = "currentUser"
	tokenCookie = "token"
)

// UserLoader fetches the user a token was issued for.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type Middleware struct {
	tokens *TokenManager
	users  UserLoader
	logger *zap.Logger
}

func NewMiddleware(tokens *TokenManager, loader UserLoader, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: loader, logger: logger}
}

// RequireAuth loads the active user of the bearer token or the token cookie.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		userID, err := m.tokens.Parse(raw)
		if err != nil {
			m.logger.Debug("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := m.users.GetUser(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !user.Ativo {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// Browsers cannot set headers on a websocket handshake.
	if cookie, err := c.Cookie(tokenCookie); err == nil {
		return cookie
	}
	return ""
}

// CurrentUser returns the user set by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *users.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*users.User)
	return user
}

// SetCurrentUser stores user in the request context.
func SetCurrentUser(c *gin.Context, user *users.User) {
	c.Set(userKey, user)
}

// RequestLogger logs every request with zap.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user := CurrentUser(c); user != nil {
			fields = append(fields, zap.String("user_id", user.ID.String()))
		}
		logger.Info("HTTP Request", fields...)
	}
}

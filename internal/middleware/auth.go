package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taxitap/internal/domain"
	"taxitap/internal/service"
)

// Context keys set by Auth.
const (
	ContextUserID   = "user_id"
	ContextRole     = "role"
	ContextDeviceID = "device_id"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*service.Claims, error)
}

// SessionHeartbeat refreshes a user's device session and fails when it is no
// longer active for that user.
type SessionHeartbeat interface {
	Heartbeat(ctx context.Context, userID, deviceID string) error
}

// Auth rejects requests without a valid bearer token. Tokens bound to a device
// also require that device's session to still be active.
func Auth(tokens TokenParser, sessions SessionHeartbeat) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if claims.DeviceID != "" && sessions != nil {
			if err := sessions.Heartbeat(c.Request.Context(), claims.UserID, claims.DeviceID); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, service.ErrUnauthorized) {
					status = http.StatusUnauthorized
				}
				c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, string(claims.Role))
		c.Set(ContextDeviceID, claims.DeviceID)
		c.Next()
	}
}

// UserID returns the authenticated user.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// DeviceID returns the device the token was issued for, if any.
func DeviceID(c *gin.Context) string {
	return c.GetString(ContextDeviceID)
}

// Role returns the role recorded in the token at login.
func Role(c *gin.Context) domain.Role {
	return domain.Role(c.GetString(ContextRole))
}

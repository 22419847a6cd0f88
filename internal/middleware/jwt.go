package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/multispeaker/backend/internal/auth"
	"github.com/multispeaker/backend/pkg/response"
)

const (
	// ContextUserID is the key for the caller's user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserName is the key for the caller's display name in gin context.
	ContextUserName = "user_name"
	// ContextUserEmail is the key for the caller's email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the session token and sets the
// caller's identity in context. Every orchestrator call reads identity from
// here; there is no ambient signed-in user.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserName, claims.FullName)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// CallerID returns the authenticated user ID set by the JWT middleware.
func CallerID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}

// CallerName returns the authenticated display name set by the JWT middleware.
func CallerName(c *gin.Context) string {
	name, _ := c.MustGet(ContextUserName).(string)
	return name
}

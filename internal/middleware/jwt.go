package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/communityhub/backend/pkg/response"
)

const (
	// ContextIdentity is the key for the authenticated admin in gin context.
	ContextIdentity = "identity"
	// ContextUserRole is the key for the admin role in gin context.
	ContextUserRole = "user_role"
)

// Identity is an authenticated admin session.
type Identity struct {
	AdminID   uuid.UUID
	Email     string
	Role      string
	SessionID string
}

// Authenticator resolves a bearer token to an identity, checking signature and session.
type Authenticator func(ctx context.Context, token string) (*Identity, error)

// JWT returns a middleware that authenticates the bearer token and sets the identity in context.
func JWT(authenticate Authenticator) gin.HandlerFunc {
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
		id, err := authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, *id)
		c.Set(ContextUserRole, id.Role)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by JWT, or the zero value.
func CurrentIdentity(c *gin.Context) Identity {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return Identity{}
	}
	id, _ := v.(Identity)
	return id
}

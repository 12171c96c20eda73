package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/response"
)

// RequireRole allows only admins holding one of roles. It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[string(r)] = struct{}{}
	}
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id.Role == "" {
			response.Unauthorized(c, "missing admin context")
			c.Abort()
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

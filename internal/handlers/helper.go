package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"
	userIDKey      = "user_id"
	roleAdmin      = "admin"
)

// RequireUser trusts the identity asserted by the upstream gateway and
// rejects requests that carry none.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(userIDHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// RequireAdmin admits only callers the gateway marked as administrators.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetHeader(userRoleHeader), roleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Forbidden - insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

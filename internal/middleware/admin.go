package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole allows the request through only when RequireAuth has set one
// of roles on the context. It must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "caller role is not permitted for this endpoint",
			})
			return
		}
		c.Next()
	}
}

// Caller returns the authenticated caller name, or "anonymous".
func Caller(c *gin.Context) string {
	if v := c.GetString(ContextCaller); v != "" {
		return v
	}
	return "anonymous"
}

package middleware

import (
	"net/http"

	"assesshub/internal/domain"
	"assesshub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequirePermission gates a route on the static permission table. The role
// comes from the validated token; the table is the single source of truth,
// so the token's permission snapshot is advisory only.
func RequirePermission(table *domain.PermissionTable, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, exists := c.Get("role")
		if !exists {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			c.Abort()
			return
		}

		role := domain.Role(roleStr.(string))
		if !table.HasPermission(role, permission) {
			response.Error(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Access denied: insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole allows only the listed roles through.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[domain.Role(c.GetString("role"))] {
			response.Error(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Access denied: insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

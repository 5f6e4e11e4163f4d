package middleware

import (
	"net/http"
	"strings"

	"assesshub/internal/pkg/response"
	"assesshub/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// RequireAuth validates the bearer access token and stores the principal in
// the request context under identity_id, role, tenant_id, permissions and
// mfa_verified.
func RequireAuth(issuer *token.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abortUnauthorized(c, "Missing Authorization header")
			return
		}
		if !strings.HasPrefix(h, "Bearer ") {
			abortUnauthorized(c, "Invalid Authorization header")
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if tokenStr == "" {
			abortUnauthorized(c, "Empty token")
			return
		}

		claims, err := issuer.Validate(tokenStr, token.TypeAccess)
		if err != nil {
			if err == token.ErrTokenExpired {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error":   gin.H{"code": "TOKEN_EXPIRED", "message": "Token has expired"},
				})
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set("identity_id", claims.Subject)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Set("tenant_id", claims.TenantID)
		c.Set("permissions", claims.Permissions)
		c.Set("mfa_verified", claims.MFAVerified)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": message},
	})
}

// RequireMFAVerified rejects tokens issued without a completed second
// factor. Put it in front of the most sensitive routes.
func RequireMFAVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("mfa_verified") {
			response.Error(c, http.StatusForbidden, "MFA_REQUIRED", "MFA verification required")
			c.Abort()
			return
		}
		c.Next()
	}
}

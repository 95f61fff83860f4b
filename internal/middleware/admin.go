package middleware

import (
	"net/http" // HTTP status codes

	"wallet_saga/internal/utils" // Role names

	"github.com/gin-gonic/gin" // Gin web framework
)

// RequireRole lets the request through only when JWTAuthMiddleware stored one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleKey) // Set by JWTAuthMiddleware
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Insufficient role")
	}
}

// ServiceOnly guards the internal ledger routes
func ServiceOnly() gin.HandlerFunc { return RequireRole(utils.RoleService) }

// OperatorOnly guards the reconciliation views
func OperatorOnly() gin.HandlerFunc { return RequireRole(utils.RoleOperator) }

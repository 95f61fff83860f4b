package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"wallet_saga/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by JWTAuthMiddleware.
const (
	CallerKey = "caller" // Token subject
	RoleKey   = "role"   // Token role
)

// JWTAuthMiddleware validates bearer tokens and stores the caller and role in the context
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(CallerKey, claims.Subject)
		c.Set(RoleKey, claims.Role)
		c.Next() // Proceed to the next handler
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg, "code": strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))})
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"freight/internal/auth"
)

const (
	userIDKey = "auth.user_id"
	roleKey   = "auth.role"
)

// Authenticate resolves the bearer token into a user ID and stores it on the
// context. Requests without a valid token are rejected with 401.
func Authenticate(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			token = ""
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			msg := "invalid access token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "missing access token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "unauthenticated"})
			return
		}

		c.Set(userIDKey, identity.UserID)
		c.Set(roleKey, identity.Role)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose token lacks role with 403.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role", "code": "forbidden"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user ID, or "" if the request was not
// authenticated.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// SetUserID stores a user ID on the context. Used by tests.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

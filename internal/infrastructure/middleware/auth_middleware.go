package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "roomlink/pkg/errors"

	"github.com/gin-gonic/gin"
)

// RequireToken guards the status endpoints with a static bearer token.
// An empty token leaves them open.
func RequireToken(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	want := []byte(token)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.Error(apperrors.NewAPIError(apperrors.ErrCodeUnauthorized, "valid bearer token required", http.StatusUnauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}

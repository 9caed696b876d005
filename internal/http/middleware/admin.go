package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tadasupo/backend/internal/apperr"
)

// RequireAdmin must run after Identity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, string(apperr.Unauthorized), "no identity presented")
			return
		}
		if !actor.IsAdmin() {
			abortError(c, http.StatusForbidden, string(apperr.Forbidden), "admin role required")
			return
		}
		c.Next()
	}
}

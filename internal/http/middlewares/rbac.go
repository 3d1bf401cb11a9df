package middlewares

import (
	"net/http"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(allowed user.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFromContext(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		if err := auth.RequireRole(id, allowed); err != nil {
			m.fail(c, err)
			return
		}
		c.Next()
	}
}

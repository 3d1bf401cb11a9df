package middlewares

import (
	"errors"
	"net/http"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/gin-gonic/gin"
)

func requestID(c *gin.Context) string {
	if v, ok := c.Get(CtxRequestID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.GetHeader(requestIDHeader)
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": requestID(c),
		},
	})
}

// AuthFailure maps an error from the auth package to its HTTP status, the
// envelope code and message, and a short reason used as a metric label.
func AuthFailure(err error) (status int, code, message, reason string) {
	switch {
	case errors.Is(err, auth.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "Authorization service temporarily unavailable", "unavailable"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden", "Not enough permissions", "forbidden"
	case errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthorized", "Token has been revoked", "revoked"
	case errors.Is(err, auth.ErrAccountInactive):
		return http.StatusUnauthorized, "unauthorized", "Inactive user", "inactive"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized", "Incorrect username or password", "bad_credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized", "Could not validate credentials", "invalid_token"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized", "Could not validate credentials", "unknown_account"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error", "internal"
	}
}

// AbortWithAuthError writes the envelope for an auth outcome and stops the chain.
func AbortWithAuthError(c *gin.Context, err error) {
	status, code, message, _ := AuthFailure(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	abortJSON(c, status, code, message)
}

package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/tourhub/internal/actorctx"
	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// Authenticator is satisfied by *auth.Gate. Kept small so tests can fake it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Claims, user.Identity, error)
}

type AuthMiddleware struct {
	gate Authenticator
	prom *observability.Prom
}

func NewAuthMiddleware(gate Authenticator, prom *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{gate: gate, prom: prom}
}

var errMissingBearer = errors.New("missing bearer token")

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingBearer
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingBearer
	}
	return raw, nil
}

func (m *AuthMiddleware) authenticate(c *gin.Context, raw string) error {
	claims, id, err := m.gate.Authenticate(c.Request.Context(), raw)
	if err != nil {
		return err
	}

	c.Set(ctxIdentityKey, id)
	c.Set(ctxClaimsKey, claims)
	c.Set(ctxTokenKey, raw)
	c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), id))
	return nil
}

func (m *AuthMiddleware) fail(c *gin.Context, err error) {
	_, _, _, reason := AuthFailure(err)
	m.prom.ObserveAuthFailure(reason)
	AbortWithAuthError(c, err)
}

// RequireAuth rejects the request unless it carries a valid, unrevoked bearer
// token for an existing active account.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			m.prom.ObserveAuthFailure("missing_token")
			c.Header("WWW-Authenticate", "Bearer")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}

		if err := m.authenticate(c, raw); err != nil {
			m.fail(c, err)
			return
		}

		c.Next()
	}
}

// OptionalAuth resolves the caller when a token is present. A missing or
// unusable token leaves the request anonymous; only an unreachable backend
// fails the request.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			c.Next()
			return
		}

		if err := m.authenticate(c, raw); err != nil {
			if errors.Is(err, auth.ErrServiceUnavailable) {
				m.fail(c, err)
				return
			}
		}

		c.Next()
	}
}

// Helpers so handlers don't need to know the context keys.

func IdentityFromContext(c *gin.Context) (user.Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return user.Identity{}, false
	}
	id, ok := v.(user.Identity)
	return id, ok
}

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

func TokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := v.(string)
	return raw, ok && raw != ""
}

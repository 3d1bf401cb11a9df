package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/http/middlewares"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/gin-gonic/gin"
)

type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type TokenIssuer interface {
	Issue(id user.Identity) (string, *auth.Claims, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}

type AuthHandler struct {
	users       AccountStore
	hasher      PasswordHasher
	tokens      TokenIssuer
	revocations TokenRevoker
	log         *slog.Logger
	prom        *observability.Prom

	// compared against when the username is unknown so both paths pay for
	// one bcrypt verification
	dummyHash string
}

func NewAuthHandler(users AccountStore, hasher PasswordHasher, tokens TokenIssuer, revocations TokenRevoker, log *slog.Logger, prom *observability.Prom) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	dummy, _ := hasher.Hash("tourhub-dummy-password")
	return &AuthHandler{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		log:         log,
		prom:        prom,
		dummyHash:   dummy,
	}
}

type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        user.Identity `json:"user"`
}

func (h *AuthHandler) respondToken(ctx *gin.Context, status int, u user.User) {
	id := u.Identity()

	token, claims, err := h.tokens.Issue(id)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "issue token", "err", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(status, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(claims.ExpiresAtTime().Sub(claims.IssuedAt.Time).Seconds()),
		User:        id,
	})
}

// POST /auth/signup
func (h *AuthHandler) Signup(ctx *gin.Context) {
	var req user.SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if err := req.Normalize(); err != nil {
		RespondFieldError(ctx, "full_name", "required", "cannot be empty")
		return
	}

	role := user.RoleRequestor
	if req.Role != nil {
		role = *req.Role
	}
	if role == user.RoleAdmin {
		RespondForbidden(ctx, "Cannot self-register as admin")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "hash password", "err", err)
		RespondInternal(ctx, "Failed to create user")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.Create(cctx, user.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			RespondConflict(ctx, "user_exists", "Username or email already registered")
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "create user", "err", err)
		RespondInternal(ctx, "Failed to create user")
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user signed up", "user_id", u.ID, "role", u.Role.String())
	h.respondToken(ctx, http.StatusCreated, u)
}

// POST /auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.Normalize()

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByUsername(cctx, req.Username)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			h.log.ErrorContext(ctx.Request.Context(), "login lookup", "err", err)
			h.prom.ObserveLogin("error")
			RespondUnavailable(ctx, "Authentication service temporarily unavailable")
			return
		}
		h.hasher.Verify(req.Password, h.dummyHash)
		h.failLogin(ctx, "bad_credentials", "Incorrect username or password")
		return
	}

	if !h.hasher.Verify(req.Password, u.PasswordHash) {
		h.failLogin(ctx, "bad_credentials", "Incorrect username or password")
		return
	}

	if !u.IsActive {
		h.failLogin(ctx, "inactive", "User account is disabled")
		return
	}

	h.prom.ObserveLogin("ok")
	h.respondToken(ctx, http.StatusOK, u)
}

func (h *AuthHandler) failLogin(ctx *gin.Context, reason, message string) {
	h.prom.ObserveLogin(reason)
	h.prom.ObserveAuthFailure(reason)
	ctx.Header("WWW-Authenticate", "Bearer")
	RespondError(ctx, http.StatusUnauthorized, "unauthorized", message, nil)
}

// POST /auth/logout
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, ok := middlewares.TokenFromContext(ctx)
	claims, ok2 := middlewares.ClaimsFromContext(ctx)
	if !ok || !ok2 {
		middlewares.AbortWithAuthError(ctx, auth.ErrInvalidToken)
		return
	}

	if err := h.revocations.Revoke(ctx.Request.Context(), raw, claims.ExpiresAtTime()); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "revoke token", "err", err)
		RespondUnavailable(ctx, "Could not log out, try again")
		return
	}
	h.prom.ObserveRevocation()

	ctx.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// GET /auth/me
func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}
	ctx.JSON(http.StatusOK, id)
}

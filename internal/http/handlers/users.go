package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, id int64, req user.UpdateRequest) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

// UsersHandler is the admin account management surface.
type UsersHandler struct {
	repo   UsersStore
	hasher PasswordHasher
	log    *slog.Logger
}

func NewUsersHandler(repo UsersStore, hasher PasswordHasher, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{repo: repo, hasher: hasher, log: log}
}

// GET /user
func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	users, err := h.repo.List(cctx)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list users", "err", err)
		RespondInternal(ctx, "Could not list users")
		return
	}
	ctx.JSON(http.StatusOK, users)
}

// GET /user/:id
func (h *UsersHandler) GetByID(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not fetch user")
		return
	}
	ctx.JSON(http.StatusOK, u)
}

// POST /user
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateRequest
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
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.repo.Create(cctx, user.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	})
	if err != nil {
		h.respondRepoError(ctx, err, "Could not create user")
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user created", "target_id", u.ID, "role", u.Role.String())
	ctx.JSON(http.StatusCreated, u)
}

// PUT /user/:id
func (h *UsersHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req user.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if err := req.Normalize(); err != nil {
		if errors.Is(err, user.ErrInvalidRole) {
			RespondFieldError(ctx, "role", "oneof", "must be one of admin, leader, requestor")
			return
		}
		RespondFieldError(ctx, "full_name", "required", "cannot be empty")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	var (
		u   user.User
		err error
	)
	if req.Empty() {
		u, err = h.repo.GetByID(cctx, id)
	} else {
		u, err = h.repo.Update(cctx, id, req)
	}
	if err != nil {
		h.respondRepoError(ctx, err, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// DELETE /user/:id
func (h *UsersHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondRepoError(ctx, err, "Could not delete user")
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user deleted", "target_id", id)
	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *UsersHandler) respondRepoError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrAlreadyExists):
		RespondConflict(ctx, "user_exists", "Username or email already registered")
	default:
		h.log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
		RespondInternal(ctx, fallback)
	}
}

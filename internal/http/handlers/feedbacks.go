package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/domain/feedback"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type FeedbacksStore interface {
	Create(ctx context.Context, userID int64, req feedback.CreateRequest) (feedback.Feedback, error)
	GetByID(ctx context.Context, id int64) (feedback.Feedback, error)
	List(ctx context.Context, publishedOnly bool) ([]feedback.Feedback, error)
	Update(ctx context.Context, id int64, req feedback.UpdateRequest) (feedback.Feedback, error)
	Delete(ctx context.Context, id int64) error
}

type FeedbacksHandler struct {
	repo FeedbacksStore
	log  *slog.Logger
}

func NewFeedbacksHandler(repo FeedbacksStore, log *slog.Logger) *FeedbacksHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FeedbacksHandler{repo: repo, log: log}
}

func callerIsAdmin(ctx *gin.Context) bool {
	id, ok := middlewares.IdentityFromContext(ctx)
	return ok && id.IsAdmin()
}

// GET /feedback: published entries for everyone, all entries for admins.
func (h *FeedbacksHandler) List(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.repo.List(cctx, !callerIsAdmin(ctx))
	if err != nil {
		h.respondRepoError(ctx, err, "Could not list feedback")
		return
	}
	ctx.JSON(http.StatusOK, items)
}

// GET /feedback/:id. Unpublished feedback does not exist for non-admins.
func (h *FeedbacksHandler) GetByID(ctx *gin.Context) {
	feedbackID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	f, err := h.repo.GetByID(cctx, feedbackID)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not fetch feedback")
		return
	}
	if !f.IsPublished && !callerIsAdmin(ctx) {
		RespondNotFound(ctx, "Feedback not found")
		return
	}
	ctx.JSON(http.StatusOK, f)
}

// POST /feedback
func (h *FeedbacksHandler) Create(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}

	var req feedback.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.Comment = feedback.NormalizeComment(req.Comment)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	f, err := h.repo.Create(cctx, id.ID, req)
	if err != nil {
		if errors.Is(err, tour.ErrNotFound) {
			RespondNotFound(ctx, "Tour not found or inactive")
			return
		}
		h.respondRepoError(ctx, err, "Could not create feedback")
		return
	}
	ctx.JSON(http.StatusCreated, f)
}

// load fetches the feedback and checks the caller may modify it.
func (h *FeedbacksHandler) load(cctx context.Context, ctx *gin.Context) (feedback.Feedback, bool) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return feedback.Feedback{}, false
	}
	feedbackID, ok := pathID(ctx, "id")
	if !ok {
		return feedback.Feedback{}, false
	}

	f, err := h.repo.GetByID(cctx, feedbackID)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not fetch feedback")
		return feedback.Feedback{}, false
	}
	if err := auth.CheckOwnership(id, f.UserID); err != nil {
		RespondForbidden(ctx, "Access denied")
		return feedback.Feedback{}, false
	}
	return f, true
}

// PUT /feedback/:id
func (h *FeedbacksHandler) Update(ctx *gin.Context) {
	var req feedback.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	f, ok := h.load(cctx, ctx)
	if !ok {
		return
	}

	updated, err := h.repo.Update(cctx, f.ID, req)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not update feedback")
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

// DELETE /feedback/:id
func (h *FeedbacksHandler) Delete(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	f, ok := h.load(cctx, ctx)
	if !ok {
		return
	}

	if err := h.repo.Delete(cctx, f.ID); err != nil {
		h.respondRepoError(ctx, err, "Could not delete feedback")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Feedback deleted successfully"})
}

func (h *FeedbacksHandler) respondRepoError(ctx *gin.Context, err error, fallback string) {
	if errors.Is(err, feedback.ErrNotFound) {
		RespondNotFound(ctx, "Feedback not found")
		return
	}
	h.log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
	RespondInternal(ctx, fallback)
}

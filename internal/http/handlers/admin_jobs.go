package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/job"
	"github.com/geocoder89/tourhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminJobsRepo interface {
	List(ctx context.Context, status *job.Status, limit int) ([]job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) error
	RetryManyFailed(ctx context.Context, limit int) (int64, error)
}

type AdminJobsHandler struct {
	repo AdminJobsRepo
	log  *slog.Logger
}

func NewAdminJobsHandler(repo AdminJobsRepo, log *slog.Logger) *AdminJobsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminJobsHandler{repo: repo, log: log}
}

// GET /admin/jobs?status=failed&limit=50
func (h *AdminJobsHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		RespondFieldError(ctx, "limit", "range", "must be between 1 and 200")
		return
	}

	var statusPtr *job.Status
	if s := ctx.Query("status"); s != "" {
		st := job.Status(s)
		if !st.Valid() {
			RespondFieldError(ctx, "status", "oneof", "must be one of pending, processing, done, failed")
			return
		}
		statusPtr = &st
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.repo.List(cctx, statusPtr, limit)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list jobs", "err", err)
		RespondInternal(ctx, "Could not list jobs")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"limit": limit,
		"count": len(items),
		"items": items,
	})
}

func jobID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, id)

	if _, err := uuid.Parse(id); err != nil {
		RespondFieldError(ctx, "id", "uuid", "must be a UUID")
		return "", false
	}
	return id, true
}

// GET /admin/jobs/:id
func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	id, ok := jobID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	j, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}
		RespondInternal(ctx, "Could not fetch job")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, j)
}

// POST /admin/jobs/:id/retry
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	id, ok := jobID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Retry(cctx, id); err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, job.ErrNotFailed):
			RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "retry job", "err", err)
			RespondInternal(ctx, "Could not retry job")
		}
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "job requeued", "job_id", id)
	ctx.JSON(http.StatusOK, gin.H{
		"job_id": id,
		"status": job.StatusPending,
	})
}

// POST /admin/jobs/retry-failed?limit=50
func (h *AdminJobsHandler) RetryFailed(ctx *gin.Context) {
	limit := 50
	if s := ctx.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			RespondFieldError(ctx, "limit", "int", "must be a number")
			return
		}
		limit = n
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	n, err := h.repo.RetryManyFailed(cctx, limit)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "retry failed jobs", "err", err)
		RespondInternal(ctx, "Could not requeue failed jobs")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"requeued": n})
}

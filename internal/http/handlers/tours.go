package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tourhub/internal/cache"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/gin-gonic/gin"
)

type ToursStore interface {
	Create(ctx context.Context, req tour.CreateRequest) (tour.Tour, error)
	GetActive(ctx context.Context, id int64) (tour.Tour, error)
	ListActive(ctx context.Context) ([]tour.Tour, error)
	Update(ctx context.Context, id int64, req tour.UpdateRequest) (tour.Tour, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (tour.Stats, error)
	DetailedStats(ctx context.Context) (tour.DetailedStats, error)
}

const activeToursKey = "tours:active"

type ToursHandler struct {
	repo  ToursStore
	cache *cache.Cache
	log   *slog.Logger
}

// NewToursHandler wires the tour endpoints. A nil cache disables caching of
// the public list.
func NewToursHandler(repo ToursStore, c *cache.Cache, log *slog.Logger) *ToursHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ToursHandler{repo: repo, cache: c, log: log}
}

func (h *ToursHandler) invalidate() {
	if h.cache != nil {
		h.cache.DeletePrefix("tours:")
	}
}

// GET /tour
func (h *ToursHandler) List(ctx *gin.Context) {
	if h.cache != nil {
		if v, ok := h.cache.Get(activeToursKey); ok {
			if tours, ok := v.([]tour.Tour); ok {
				RespondJSONWithETag(ctx, http.StatusOK, tours)
				return
			}
		}
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	tours, err := h.repo.ListActive(cctx)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list tours", "err", err)
		RespondInternal(ctx, "Could not list tours")
		return
	}

	if h.cache != nil {
		h.cache.Set(activeToursKey, tours)
	}
	RespondJSONWithETag(ctx, http.StatusOK, tours)
}

// GET /tour/:id
func (h *ToursHandler) GetByID(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	t, err := h.repo.GetActive(cctx, id)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not fetch tour")
		return
	}
	RespondJSONWithETag(ctx, http.StatusOK, t)
}

// POST /tour
func (h *ToursHandler) Create(ctx *gin.Context) {
	var req tour.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	t, err := h.repo.Create(cctx, req)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not create tour")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusCreated, t)
}

// PUT /tour/:id
func (h *ToursHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req tour.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	t, err := h.repo.Update(cctx, id, req)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not update tour")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusOK, t)
}

// DELETE /tour/:id removes the tour with its bookings and feedback.
func (h *ToursHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondRepoError(ctx, err, "Could not delete tour")
		return
	}
	h.invalidate()

	ctx.JSON(http.StatusOK, gin.H{"message": "Tour deleted successfully"})
}

// GET /tour/stats
func (h *ToursHandler) Stats(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	s, err := h.repo.Stats(cctx)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not compute tour stats")
		return
	}
	ctx.JSON(http.StatusOK, s)
}

// GET /tour/stats/detailed
func (h *ToursHandler) DetailedStats(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	s, err := h.repo.DetailedStats(cctx)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not compute tour stats")
		return
	}
	ctx.JSON(http.StatusOK, s)
}

func (h *ToursHandler) respondRepoError(ctx *gin.Context, err error, fallback string) {
	if errors.Is(err, tour.ErrNotFound) {
		RespondNotFound(ctx, "Tour not found")
		return
	}
	h.log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
	RespondInternal(ctx, fallback)
}

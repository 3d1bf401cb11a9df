package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/domain/booking"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/http/middlewares"
	"github.com/geocoder89/tourhub/internal/jobs"
	"github.com/gin-gonic/gin"
)

type BookingsStore interface {
	Create(ctx context.Context, userID int64, req booking.CreateRequest, outbox booking.Outbox) (booking.Booking, error)
	GetByID(ctx context.Context, id int64) (booking.Booking, error)
	List(ctx context.Context, ownerID *int64) ([]booking.Booking, error)
	Update(ctx context.Context, id int64, req booking.UpdateRequest, guard booking.Guard, outbox booking.Outbox) (booking.Booking, error)
	Delete(ctx context.Context, id int64, guard booking.Guard) error
}

// BookingsHandler serves tour requests. Every route runs behind RequireAuth.
type BookingsHandler struct {
	repo BookingsStore
	log  *slog.Logger
}

func NewBookingsHandler(repo BookingsStore, log *slog.Logger) *BookingsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsHandler{repo: repo, log: log}
}

func ownerGuard(id user.Identity) booking.Guard {
	return func(cur booking.Booking) error {
		return auth.CheckOwnership(id, cur.UserID)
	}
}

// GET /request: admins see every booking, everyone else their own.
func (h *BookingsHandler) List(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}

	var owner *int64
	if !id.IsAdmin() {
		owner = &id.ID
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.repo.List(cctx, owner)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not list requests")
		return
	}
	ctx.JSON(http.StatusOK, items)
}

// GET /request/:id
func (h *BookingsHandler) GetByID(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}
	bookingID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	b, err := h.repo.GetByID(cctx, bookingID)
	if err != nil {
		h.respondRepoError(ctx, err, "Could not fetch request")
		return
	}
	if err := auth.CheckOwnership(id, b.UserID); err != nil {
		RespondForbidden(ctx, "Access denied")
		return
	}
	ctx.JSON(http.StatusOK, b)
}

// POST /request
func (h *BookingsHandler) Create(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}

	var req booking.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.Normalize()

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	b, err := h.repo.Create(cctx, id.ID, req, jobs.BookingOutbox(requestIDFrom(ctx), id.ID))
	if err != nil {
		if errors.Is(err, tour.ErrNotFound) {
			RespondNotFound(ctx, "Tour not found or inactive")
			return
		}
		h.respondRepoError(ctx, err, "Could not create request")
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "booking created", "booking_id", b.ID, "tour_id", b.TourID)
	ctx.JSON(http.StatusCreated, b)
}

// PUT /request/:id
func (h *BookingsHandler) Update(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}
	bookingID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req booking.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	guard := func(cur booking.Booking) error {
		if err := auth.CheckOwnership(id, cur.UserID); err != nil {
			return err
		}
		return req.CheckStatusChange(cur.Status, id.IsAdmin())
	}

	b, err := h.repo.Update(cctx, bookingID, req, guard, jobs.BookingOutbox(requestIDFrom(ctx), id.ID))
	if err != nil {
		h.respondRepoError(ctx, err, "Could not update request")
		return
	}

	if req.Status != nil {
		h.log.InfoContext(ctx.Request.Context(), "booking status set", "booking_id", b.ID, "status", string(b.Status))
	}
	ctx.JSON(http.StatusOK, b)
}

// DELETE /request/:id
func (h *BookingsHandler) Delete(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		middlewares.AbortWithAuthError(ctx, auth.ErrUnauthenticated)
		return
	}
	bookingID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, bookingID, ownerGuard(id)); err != nil {
		h.respondRepoError(ctx, err, "Could not delete request")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Request cancelled successfully"})
}

func (h *BookingsHandler) respondRepoError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		RespondNotFound(ctx, "Request not found")
	case errors.Is(err, auth.ErrForbidden):
		RespondForbidden(ctx, "Access denied")
	case errors.Is(err, booking.ErrStatusChange):
		RespondForbidden(ctx, "Only admins can approve or reject requests")
	default:
		h.log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
		RespondInternal(ctx, fallback)
	}
}

package worker

import (
	"context"
	"errors"

	"github.com/geocoder89/tourhub/internal/domain/booking"
	"github.com/geocoder89/tourhub/internal/domain/delivery"
	"github.com/geocoder89/tourhub/internal/domain/job"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/jobs"
	"github.com/geocoder89/tourhub/internal/notifications"
)

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return permanent(err)
	}

	switch p := payload.(type) {
	case jobs.BookingConfirmationPayload:
		return w.sendConfirmation(ctx, j, p)
	case jobs.BookingStatusChangedPayload:
		return w.sendStatusChanged(ctx, j, p)
	default:
		return permanent(&jobs.PayloadError{Type: jobs.JobType(j.Type), Err: jobs.ErrInvalidJobType})
	}
}

// recipient loads what a booking notification needs. A booking, account or
// tour deleted since enqueue makes the job moot.
func (w *Worker) recipient(ctx context.Context, bookingID, userID, tourID int64) (booking.Booking, user.User, tour.Tour, error) {
	b, err := w.deps.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, user.User{}, tour.Tour{}, lookupErr(err)
	}
	u, err := w.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return booking.Booking{}, user.User{}, tour.Tour{}, lookupErr(err)
	}
	t, err := w.deps.Tours.GetByID(ctx, tourID)
	if err != nil {
		return booking.Booking{}, user.User{}, tour.Tour{}, lookupErr(err)
	}
	return b, u, t, nil
}

var errGone = errors.New("notification target no longer exists")

func lookupErr(err error) error {
	if errors.Is(err, booking.ErrNotFound) || errors.Is(err, user.ErrNotFound) || errors.Is(err, tour.ErrNotFound) {
		return errGone
	}
	return err
}

func (w *Worker) sendConfirmation(ctx context.Context, j job.Job, p jobs.BookingConfirmationPayload) error {
	b, u, t, err := w.recipient(ctx, p.BookingID, p.UserID, p.TourID)
	if errors.Is(err, errGone) {
		w.deps.Log.InfoContext(ctx, "skipping notification", "job_id", j.ID, "booking_id", p.BookingID, "reason", err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	return w.deliver(ctx, j, b.ID, u.Email, func(ctx context.Context) error {
		return w.deps.Notifier.SendBookingConfirmation(ctx, notifications.BookingConfirmationInput{
			Email:     u.Email,
			FullName:  u.FullName,
			TourTitle: t.Title,
			BookingID: b.ID,
			Date:      b.PreferredDate.Format("2006-01-02"),
		})
	})
}

func (w *Worker) sendStatusChanged(ctx context.Context, j job.Job, p jobs.BookingStatusChangedPayload) error {
	b, u, t, err := w.recipient(ctx, p.BookingID, p.UserID, p.TourID)
	if errors.Is(err, errGone) {
		w.deps.Log.InfoContext(ctx, "skipping notification", "job_id", j.ID, "booking_id", p.BookingID, "reason", err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	return w.deliver(ctx, j, b.ID, u.Email, func(ctx context.Context) error {
		return w.deps.Notifier.SendBookingStatusChanged(ctx, notifications.BookingStatusChangedInput{
			Email:     u.Email,
			FullName:  u.FullName,
			TourTitle: t.Title,
			BookingID: b.ID,
			From:      p.From,
			To:        p.To,
		})
	})
}

func (w *Worker) deliver(ctx context.Context, j job.Job, bookingID int64, recipient string, send func(context.Context) error) error {
	ledger := w.deps.Deliveries
	if ledger == nil {
		return send(ctx)
	}

	if err := ledger.TryStart(ctx, j.ID, j.Type, bookingID, recipient); err != nil {
		if errors.Is(err, delivery.ErrAlreadySent) {
			return nil
		}
		return err
	}

	if err := send(ctx); err != nil {
		_ = ledger.MarkFailed(ctx, j.ID, err.Error())
		return err
	}
	return ledger.MarkSent(ctx, j.ID)
}

package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrProviderDown = errors.New("notification provider down")

// LogNotifier writes notifications to the log instead of a mail provider.
type LogNotifier struct {
	log *slog.Logger

	// Delay and Fail simulate a slow or failing provider.
	Delay time.Duration
	Fail  bool
}

func NewLogNotifier(log *slog.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) simulate(ctx context.Context) error {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n.Fail {
		return ErrProviderDown
	}
	return nil
}

func (n *LogNotifier) SendBookingConfirmation(ctx context.Context, in BookingConfirmationInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.booking_confirmation",
		"email", in.Email,
		"name", in.FullName,
		"tour", in.TourTitle,
		"booking_id", in.BookingID,
		"preferred_date", in.Date,
	)
	return nil
}

func (n *LogNotifier) SendBookingStatusChanged(ctx context.Context, in BookingStatusChangedInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.booking_status_changed",
		"email", in.Email,
		"name", in.FullName,
		"tour", in.TourTitle,
		"booking_id", in.BookingID,
		"from", in.From,
		"to", in.To,
	)
	return nil
}

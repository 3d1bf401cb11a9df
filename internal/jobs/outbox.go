package jobs

import (
	"fmt"

	"github.com/geocoder89/tourhub/internal/domain/booking"
	"github.com/geocoder89/tourhub/internal/domain/job"
)

// BookingOutbox picks the notification job for a booking write: a
// confirmation on create and a status notice when the status changes.
func BookingOutbox(requestID string, actorID int64) booking.Outbox {
	return func(before, after booking.Booking) (*job.CreateRequest, error) {
		if before.ID == 0 {
			return NewRequest(JobBookingConfirmation, BookingConfirmationPayload{
				BookingID: after.ID,
				UserID:    after.UserID,
				TourID:    after.TourID,
				RequestID: requestID,
			}, fmt.Sprintf("booking:%d:confirmation", after.ID))
		}

		if before.Status == after.Status {
			return nil, nil
		}

		return NewRequest(JobBookingStatusChanged, BookingStatusChangedPayload{
			BookingID: after.ID,
			UserID:    after.UserID,
			TourID:    after.TourID,
			From:      string(before.Status),
			To:        string(after.Status),
			ActorID:   actorID,
		}, fmt.Sprintf("booking:%d:status:%s:%d", after.ID, after.Status, after.UpdatedAt.UnixNano()))
	}
}

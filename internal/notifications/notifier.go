package notifications

import "context"

type BookingConfirmationInput struct {
	Email     string
	FullName  string
	TourTitle string
	BookingID int64
	Date      string
}

type BookingStatusChangedInput struct {
	Email     string
	FullName  string
	TourTitle string
	BookingID int64
	From      string
	To        string
}

type Notifier interface {
	SendBookingConfirmation(ctx context.Context, in BookingConfirmationInput) error
	SendBookingStatusChanged(ctx context.Context, in BookingStatusChangedInput) error
}

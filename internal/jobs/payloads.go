package jobs

// Payloads stay ID-based; the worker loads current details from the DB.

// BookingConfirmationPayload is enqueued when a booking request is created.
type BookingConfirmationPayload struct {
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	TourID    int64  `json:"tour_id"`
	RequestID string `json:"request_id,omitempty"`
}

// BookingStatusChangedPayload is enqueued when a booking's status moves.
type BookingStatusChangedPayload struct {
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	TourID    int64  `json:"tour_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	ActorID   int64  `json:"actor_id,omitempty"`
}

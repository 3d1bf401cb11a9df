package booking

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/job"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound     = errors.New("booking not found")
	ErrStatusChange = errors.New("only admins can approve or reject bookings")
)

// Booking is a request by one account to join a tour.
type Booking struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	TourID            int64     `json:"tour_id"`
	ParticipantsCount int       `json:"participants_count"`
	PreferredDate     time.Time `json:"preferred_date"`
	Status            Status    `json:"status"`
	Notes             *string   `json:"notes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type CreateRequest struct {
	TourID            int64     `json:"tour_id" binding:"required,min=1"`
	ParticipantsCount int       `json:"participants_count" binding:"omitempty,min=1,max=100"`
	PreferredDate     time.Time `json:"preferred_date" binding:"required"`
	Notes             *string   `json:"notes" binding:"omitempty,max=2000"`
}

// UpdateRequest is a partial update; nil fields are left unchanged. A notes
// value that is blank after trimming clears the notes.
type UpdateRequest struct {
	ParticipantsCount *int       `json:"participants_count" binding:"omitempty,min=1,max=100"`
	PreferredDate     *time.Time `json:"preferred_date"`
	Status            *Status    `json:"status" binding:"omitempty,oneof=pending approved rejected cancelled"`
	Notes             *string    `json:"notes" binding:"omitempty,max=2000"`
}

func (r *CreateRequest) Normalize() {
	if r.ParticipantsCount == 0 {
		r.ParticipantsCount = 1
	}
	r.Notes = TrimText(r.Notes)
}

// CheckStatusChange enforces who may move a booking from current to the
// requested status: non-admins may only cancel. Restating current is not a
// change and always passes.
func (r UpdateRequest) CheckStatusChange(current Status, isAdmin bool) error {
	if r.Status == nil || isAdmin || *r.Status == current {
		return nil
	}
	if *r.Status != StatusCancelled {
		return ErrStatusChange
	}
	return nil
}

// Guard inspects the current row before a write and may veto it.
type Guard func(current Booking) error

// Outbox returns the job to enqueue in the same transaction as a booking
// write, or nil when nothing should be enqueued. before is the zero Booking
// on create.
type Outbox func(before, after Booking) (*job.CreateRequest, error)

// TrimText trims free text and maps blank values to nil.
func TrimText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

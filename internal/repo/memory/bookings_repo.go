package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/booking"
	"github.com/geocoder89/tourhub/internal/domain/job"
)

// BookingsRepo keeps bookings in process. Outbox jobs are collected in
// memory and can be read back with Jobs.
type BookingsRepo struct {
	tours *ToursRepo

	mu     sync.RWMutex
	nextID int64
	items  map[int64]booking.Booking
	jobs   []job.Job
}

func NewBookingsRepo(tours *ToursRepo) *BookingsRepo {
	r := &BookingsRepo{tours: tours, items: make(map[int64]booking.Booking)}
	tours.mu.Lock()
	tours.participants = r.tourParticipants
	tours.mu.Unlock()
	return r
}

func (r *BookingsRepo) tourParticipants(tourID int64) (count int, requests int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.items {
		if b.TourID != tourID {
			continue
		}
		requests++
		if b.Status == booking.StatusPending || b.Status == booking.StatusApproved {
			count += b.ParticipantsCount
		}
	}
	return count, requests
}

func (r *BookingsRepo) enqueue(outbox booking.Outbox, before, after booking.Booking) error {
	if outbox == nil {
		return nil
	}
	req, err := outbox(before, after)
	if err != nil || req == nil {
		return err
	}
	r.jobs = append(r.jobs, job.New(*req))
	return nil
}

// Jobs returns the outbox jobs enqueued so far.
func (r *BookingsRepo) Jobs() []job.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]job.Job(nil), r.jobs...)
}

func (r *BookingsRepo) Create(ctx context.Context, userID int64, req booking.CreateRequest, outbox booking.Outbox) (booking.Booking, error) {
	if _, err := r.tours.GetActive(ctx, req.TourID); err != nil {
		return booking.Booking{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.nextID++
	b := booking.Booking{
		ID:                r.nextID,
		UserID:            userID,
		TourID:            req.TourID,
		ParticipantsCount: req.ParticipantsCount,
		PreferredDate:     req.PreferredDate,
		Status:            booking.StatusPending,
		Notes:             booking.TrimText(req.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := r.enqueue(outbox, booking.Booking{}, b); err != nil {
		r.nextID--
		return booking.Booking{}, err
	}
	r.items[b.ID] = b
	return b, nil
}

func (r *BookingsRepo) GetByID(_ context.Context, id int64) (booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.items[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (r *BookingsRepo) List(_ context.Context, ownerID *int64) ([]booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]booking.Booking, 0)
	for _, b := range r.items {
		if ownerID != nil && b.UserID != *ownerID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *BookingsRepo) Update(_ context.Context, id int64, req booking.UpdateRequest, guard booking.Guard, outbox booking.Outbox) (booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before, ok := r.items[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	if guard != nil {
		if err := guard(before); err != nil {
			return booking.Booking{}, err
		}
	}

	b := before
	if req.ParticipantsCount != nil {
		b.ParticipantsCount = *req.ParticipantsCount
	}
	if req.PreferredDate != nil {
		b.PreferredDate = *req.PreferredDate
	}
	if req.Status != nil {
		b.Status = *req.Status
	}
	if req.Notes != nil {
		b.Notes = booking.TrimText(req.Notes)
	}
	b.UpdatedAt = time.Now().UTC()

	if err := r.enqueue(outbox, before, b); err != nil {
		return booking.Booking{}, err
	}
	r.items[id] = b
	return b, nil
}

func (r *BookingsRepo) Delete(_ context.Context, id int64, guard booking.Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.items[id]
	if !ok {
		return booking.ErrNotFound
	}
	if guard != nil {
		if err := guard(b); err != nil {
			return err
		}
	}
	delete(r.items, id)
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/tour"
)

type ToursRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]tour.Tour

	// participants reports booked participants per tour for Stats.
	participants func(tourID int64) (count int, requests int)
}

func NewToursRepo() *ToursRepo {
	return &ToursRepo{items: make(map[int64]tour.Tour)}
}

func (r *ToursRepo) Create(_ context.Context, req tour.CreateRequest) (tour.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	price := 0
	if req.Price != nil {
		price = *req.Price
	}
	t := tour.Tour{
		ID:              r.nextID,
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		DurationDays:    req.DurationDays,
		MaxParticipants: req.MaxParticipants,
		Price:           price,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}
	r.items[t.ID] = t
	return t, nil
}

func (r *ToursRepo) GetByID(_ context.Context, id int64) (tour.Tour, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok {
		return tour.Tour{}, tour.ErrNotFound
	}
	return t, nil
}

func (r *ToursRepo) GetActive(ctx context.Context, id int64) (tour.Tour, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return tour.Tour{}, err
	}
	if !t.IsActive {
		return tour.Tour{}, tour.ErrNotFound
	}
	return t, nil
}

func (r *ToursRepo) ListActive(_ context.Context) ([]tour.Tour, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tour.Tour, 0, len(r.items))
	for _, t := range r.items {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ToursRepo) Update(_ context.Context, id int64, req tour.UpdateRequest) (tour.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return tour.Tour{}, tour.ErrNotFound
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Location != nil {
		t.Location = *req.Location
	}
	if req.DurationDays != nil {
		t.DurationDays = *req.DurationDays
	}
	if req.MaxParticipants != nil {
		t.MaxParticipants = *req.MaxParticipants
	}
	if req.Price != nil {
		t.Price = *req.Price
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	r.items[id] = t
	return t, nil
}

func (r *ToursRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return tour.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *ToursRepo) Stats(_ context.Context) (tour.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s tour.Stats
	for _, t := range r.items {
		s.Total++
		if !t.IsActive {
			continue
		}
		s.Active++
		if r.participants != nil {
			n, _ := r.participants(t.ID)
			s.Participants += n
		}
	}
	s.Inactive = s.Total - s.Active
	return s, nil
}

func (r *ToursRepo) DetailedStats(ctx context.Context) (tour.DetailedStats, error) {
	s, err := r.Stats(ctx)
	if err != nil {
		return tour.DetailedStats{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		title  *string
		best   int
		bestID int64
	)
	for _, t := range r.items {
		if !t.IsActive || r.participants == nil {
			continue
		}
		_, n := r.participants(t.ID)
		if n == 0 {
			continue
		}
		if n > best || (n == best && t.ID < bestID) {
			v := t.Title
			title, best, bestID = &v, n, t.ID
		}
	}
	return tour.NewDetailedStats(s, title, best), nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/feedback"
)

type FeedbacksRepo struct {
	tours *ToursRepo

	mu     sync.RWMutex
	nextID int64
	items  map[int64]feedback.Feedback
}

func NewFeedbacksRepo(tours *ToursRepo) *FeedbacksRepo {
	return &FeedbacksRepo{tours: tours, items: make(map[int64]feedback.Feedback)}
}

func (r *FeedbacksRepo) Create(ctx context.Context, userID int64, req feedback.CreateRequest) (feedback.Feedback, error) {
	if _, err := r.tours.GetActive(ctx, req.TourID); err != nil {
		return feedback.Feedback{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.nextID++
	f := feedback.Feedback{
		ID:          r.nextID,
		UserID:      userID,
		TourID:      req.TourID,
		Rating:      req.Rating,
		Comment:     feedback.NormalizeComment(req.Comment),
		IsPublished: req.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.items[f.ID] = f
	return f, nil
}

func (r *FeedbacksRepo) GetByID(_ context.Context, id int64) (feedback.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.items[id]
	if !ok {
		return feedback.Feedback{}, feedback.ErrNotFound
	}
	return f, nil
}

func (r *FeedbacksRepo) List(_ context.Context, publishedOnly bool) ([]feedback.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]feedback.Feedback, 0)
	for _, f := range r.items {
		if publishedOnly && !f.IsPublished {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *FeedbacksRepo) Update(_ context.Context, id int64, req feedback.UpdateRequest) (feedback.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.items[id]
	if !ok {
		return feedback.Feedback{}, feedback.ErrNotFound
	}
	if req.Rating != nil {
		f.Rating = *req.Rating
	}
	if req.Comment != nil {
		f.Comment = feedback.NormalizeComment(req.Comment)
	}
	if req.IsPublished != nil {
		f.IsPublished = *req.IsPublished
	}
	f.UpdatedAt = time.Now().UTC()

	r.items[id] = f
	return f, nil
}

func (r *FeedbacksRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return feedback.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

package tour

import (
	"errors"
	"math"
	"time"
)

var ErrNotFound = errors.New("tour not found")

type Tour struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	Location        string    `json:"location"`
	DurationDays    int       `json:"duration_days"`
	MaxParticipants int       `json:"max_participants"`
	Price           int       `json:"price"` // cents
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateRequest struct {
	Title           string  `json:"title" binding:"required,min=3,max=200"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	Location        string  `json:"location" binding:"required,min=2,max=200"`
	DurationDays    int     `json:"duration_days" binding:"required,min=1,max=365"`
	MaxParticipants int     `json:"max_participants" binding:"required,min=1,max=100"`
	Price           *int    `json:"price" binding:"required,min=0"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Title           *string `json:"title" binding:"omitempty,min=3,max=200"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	Location        *string `json:"location" binding:"omitempty,min=2,max=200"`
	DurationDays    *int    `json:"duration_days" binding:"omitempty,min=1,max=365"`
	MaxParticipants *int    `json:"max_participants" binding:"omitempty,min=1,max=100"`
	Price           *int    `json:"price" binding:"omitempty,min=0"`
	IsActive        *bool   `json:"is_active"`
}

// Stats counts tours and the participants booked onto active tours through
// pending or approved requests.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Inactive     int `json:"inactive"`
	Participants int `json:"participants"`
}

type DetailedStats struct {
	Stats
	AverageParticipantsPerTour float64 `json:"average_participants_per_tour"`
	MostPopularTour            *string `json:"most_popular_tour"`
	MostPopularTourRequests    int     `json:"most_popular_tour_requests"`
}

func NewDetailedStats(s Stats, popularTitle *string, popularRequests int) DetailedStats {
	avg := 0.0
	if s.Active > 0 {
		avg = math.Round(float64(s.Participants)/float64(s.Active)*100) / 100
	}
	if popularTitle == nil {
		popularRequests = 0
	}
	return DetailedStats{
		Stats:                      s,
		AverageParticipantsPerTour: avg,
		MostPopularTour:            popularTitle,
		MostPopularTourRequests:    popularRequests,
	}
}

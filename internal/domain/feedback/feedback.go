package feedback

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("feedback not found")

type Feedback struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	TourID      int64     `json:"tour_id"`
	Rating      int       `json:"rating"`
	Comment     *string   `json:"comment"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateRequest struct {
	TourID      int64   `json:"tour_id" binding:"required,min=1"`
	Rating      int     `json:"rating" binding:"required,min=1,max=5"`
	Comment     *string `json:"comment" binding:"omitempty,max=2000"`
	IsPublished bool    `json:"is_published"`
}

type UpdateRequest struct {
	Rating      *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment     *string `json:"comment" binding:"omitempty,max=2000"`
	IsPublished *bool   `json:"is_published"`
}

// NormalizeComment trims a comment; blank comments become nil.
func NormalizeComment(c *string) *string {
	if c == nil {
		return nil
	}
	v := strings.TrimSpace(*c)
	if v == "" {
		return nil
	}
	return &v
}

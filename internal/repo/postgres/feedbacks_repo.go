package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/tourhub/internal/domain/feedback"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FeedbacksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewFeedbacksRepo(pool *pgxpool.Pool, prom *observability.Prom) *FeedbacksRepo {
	return &FeedbacksRepo{pool: pool, prom: prom}
}

const feedbackColumns = `id, user_id, tour_id, rating, comment, is_published, created_at, updated_at`

func scanFeedback(row pgx.Row) (feedback.Feedback, error) {
	var f feedback.Feedback
	err := row.Scan(&f.ID, &f.UserID, &f.TourID, &f.Rating, &f.Comment, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// Create stores feedback for an active tour; tour.ErrNotFound otherwise.
func (r *FeedbacksRepo) Create(ctx context.Context, userID int64, req feedback.CreateRequest) (feedback.Feedback, error) {
	var f feedback.Feedback

	err := r.prom.ObserveDB("feedbacks.create", func() error {
		var err error
		f, err = scanFeedback(r.pool.QueryRow(ctx, `
		INSERT INTO feedbacks (user_id, tour_id, rating, comment, is_published)
		SELECT $1::BIGINT, t.id, $3::SMALLINT, $4::TEXT, $5::BOOLEAN
		FROM tours t
		WHERE t.id = $2 AND t.is_active
		RETURNING `+feedbackColumns,
			userID, req.TourID, req.Rating, feedback.NormalizeComment(req.Comment), req.IsPublished,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || IsForeignKeyViolation(err) {
			return feedback.Feedback{}, tour.ErrNotFound
		}
		return feedback.Feedback{}, err
	}
	return f, nil
}

func (r *FeedbacksRepo) GetByID(ctx context.Context, id int64) (feedback.Feedback, error) {
	var f feedback.Feedback

	err := r.prom.ObserveDB("feedbacks.get_by_id", func() error {
		var err error
		f, err = scanFeedback(r.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedbacks WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return feedback.Feedback{}, feedback.ErrNotFound
		}
		return feedback.Feedback{}, err
	}
	return f, nil
}

// List returns all feedback, or only published feedback when publishedOnly.
func (r *FeedbacksRepo) List(ctx context.Context, publishedOnly bool) ([]feedback.Feedback, error) {
	var rows pgx.Rows

	err := r.prom.ObserveDB("feedbacks.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedbacks
		WHERE (NOT $1::BOOLEAN OR is_published)
		ORDER BY created_at DESC, id DESC`, publishedOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]feedback.Feedback, 0)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FeedbacksRepo) Update(ctx context.Context, id int64, req feedback.UpdateRequest) (feedback.Feedback, error) {
	var f feedback.Feedback

	err := r.prom.ObserveDB("feedbacks.update", func() error {
		var err error
		f, err = scanFeedback(r.pool.QueryRow(ctx, `
		UPDATE feedbacks
		SET rating       = COALESCE($2, rating),
		    comment      = CASE WHEN $5::BOOLEAN THEN $3 ELSE comment END,
		    is_published = COALESCE($4, is_published),
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING `+feedbackColumns,
			id, req.Rating, feedback.NormalizeComment(req.Comment), req.IsPublished, req.Comment != nil,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return feedback.Feedback{}, feedback.ErrNotFound
		}
		return feedback.Feedback{}, err
	}
	return f, nil
}

func (r *FeedbacksRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("feedbacks.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM feedbacks WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

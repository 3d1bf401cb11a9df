package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ToursRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewToursRepo(pool *pgxpool.Pool, prom *observability.Prom) *ToursRepo {
	return &ToursRepo{pool: pool, prom: prom}
}

const tourColumns = `id, title, description, location, duration_days, max_participants, price, is_active, created_at`

func scanTour(row pgx.Row) (tour.Tour, error) {
	var t tour.Tour
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Location, &t.DurationDays, &t.MaxParticipants, &t.Price, &t.IsActive, &t.CreatedAt)
	return t, err
}

func (r *ToursRepo) Create(ctx context.Context, req tour.CreateRequest) (tour.Tour, error) {
	var t tour.Tour

	err := r.prom.ObserveDB("tours.create", func() error {
		var err error
		t, err = scanTour(r.pool.QueryRow(ctx, `
		INSERT INTO tours (title, description, location, duration_days, max_participants, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+tourColumns,
			req.Title, req.Description, req.Location, req.DurationDays, req.MaxParticipants, *req.Price,
		))
		return err
	})
	return t, err
}

// GetByID returns a tour whether or not it is active.
func (r *ToursRepo) GetByID(ctx context.Context, id int64) (tour.Tour, error) {
	return r.get(ctx, "tours.get_by_id", `SELECT `+tourColumns+` FROM tours WHERE id = $1`, id)
}

func (r *ToursRepo) GetActive(ctx context.Context, id int64) (tour.Tour, error) {
	return r.get(ctx, "tours.get_active", `SELECT `+tourColumns+` FROM tours WHERE id = $1 AND is_active`, id)
}

func (r *ToursRepo) get(ctx context.Context, op, q string, id int64) (tour.Tour, error) {
	var t tour.Tour

	err := r.prom.ObserveDB(op, func() error {
		var err error
		t, err = scanTour(r.pool.QueryRow(ctx, q, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tour.Tour{}, tour.ErrNotFound
		}
		return tour.Tour{}, err
	}
	return t, nil
}

func (r *ToursRepo) ListActive(ctx context.Context) ([]tour.Tour, error) {
	var rows pgx.Rows

	err := r.prom.ObserveDB("tours.list_active", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `SELECT `+tourColumns+` FROM tours WHERE is_active ORDER BY id ASC`)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]tour.Tour, 0)
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ToursRepo) Update(ctx context.Context, id int64, req tour.UpdateRequest) (tour.Tour, error) {
	var t tour.Tour

	err := r.prom.ObserveDB("tours.update", func() error {
		var err error
		t, err = scanTour(r.pool.QueryRow(ctx, `
		UPDATE tours
		SET title            = COALESCE($2, title),
		    description      = COALESCE($3, description),
		    location         = COALESCE($4, location),
		    duration_days    = COALESCE($5, duration_days),
		    max_participants = COALESCE($6, max_participants),
		    price            = COALESCE($7, price),
		    is_active        = COALESCE($8, is_active),
		    updated_at       = NOW()
		WHERE id = $1
		RETURNING `+tourColumns,
			id, req.Title, req.Description, req.Location, req.DurationDays, req.MaxParticipants, req.Price, req.IsActive,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tour.Tour{}, tour.ErrNotFound
		}
		return tour.Tour{}, err
	}
	return t, nil
}

// Delete removes the tour with its bookings and feedback.
func (r *ToursRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("tours.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM tours WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tour.ErrNotFound
	}
	return nil
}

// Stats counts participants on pending or approved bookings of active tours.
func (r *ToursRepo) Stats(ctx context.Context) (tour.Stats, error) {
	var s tour.Stats

	err := r.prom.ObserveDB("tours.stats", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tours),
			(SELECT COUNT(*) FROM tours WHERE is_active),
			(SELECT COALESCE(SUM(b.participants_count), 0)
			   FROM bookings b
			   JOIN tours t ON t.id = b.tour_id
			  WHERE t.is_active AND b.status IN ('pending', 'approved'))
		`).Scan(&s.Total, &s.Active, &s.Participants)
	})
	if err != nil {
		return tour.Stats{}, err
	}

	s.Inactive = s.Total - s.Active
	return s, nil
}

func (r *ToursRepo) DetailedStats(ctx context.Context) (tour.DetailedStats, error) {
	s, err := r.Stats(ctx)
	if err != nil {
		return tour.DetailedStats{}, err
	}

	var (
		title *string
		count int
	)
	err = r.prom.ObserveDB("tours.stats_most_popular", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT t.title, COUNT(b.id) AS requests
		FROM tours t
		JOIN bookings b ON b.tour_id = t.id
		WHERE t.is_active
		GROUP BY t.id, t.title
		ORDER BY requests DESC, t.id ASC
		LIMIT 1
		`).Scan(&title, &count)
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return tour.DetailedStats{}, err
	}

	return tour.NewDetailedStats(s, title, count), nil
}

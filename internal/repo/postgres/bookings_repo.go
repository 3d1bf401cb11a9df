package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/tourhub/internal/domain/booking"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
	jobs *JobsRepo
}

func NewBookingsRepo(pool *pgxpool.Pool, prom *observability.Prom, jobs *JobsRepo) *BookingsRepo {
	return &BookingsRepo{pool: pool, prom: prom, jobs: jobs}
}

const bookingColumns = `id, user_id, tour_id, participants_count, preferred_date, status, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var (
		b      booking.Booking
		status string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.TourID, &b.ParticipantsCount, &b.PreferredDate, &status, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return booking.Booking{}, err
	}
	b.Status = booking.Status(status)
	return b, nil
}

// Create books userID onto an active tour and enqueues the outbox job in the
// same transaction.
func (r *BookingsRepo) Create(ctx context.Context, userID int64, req booking.CreateRequest, outbox booking.Outbox) (b booking.Booking, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// lock the tour so it cannot be deactivated or deleted mid-booking
	err = r.prom.ObserveDB("bookings.create.tour_lock", func() error {
		var id int64
		return tx.QueryRow(ctx, `SELECT id FROM tours WHERE id = $1 AND is_active FOR SHARE`, req.TourID).Scan(&id)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = tour.ErrNotFound
		}
		return
	}

	err = r.prom.ObserveDB("bookings.create.insert", func() error {
		var e error
		b, e = scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings (user_id, tour_id, participants_count, preferred_date, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+bookingColumns,
			userID, req.TourID, req.ParticipantsCount, req.PreferredDate, req.Notes,
		))
		return e
	})
	if err != nil {
		return
	}

	if err = r.enqueue(ctx, tx, outbox, booking.Booking{}, b); err != nil {
		return
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}
	r.prom.ObserveBookingTransition("", string(b.Status))
	return
}

func (r *BookingsRepo) enqueue(ctx context.Context, tx pgx.Tx, outbox booking.Outbox, before, after booking.Booking) error {
	if outbox == nil || r.jobs == nil {
		return nil
	}

	req, err := outbox(before, after)
	if err != nil {
		return fmt.Errorf("build outbox job: %w", err)
	}
	if req == nil {
		return nil
	}

	_, err = r.jobs.CreateTx(ctx, tx, *req)
	return err
}

func (r *BookingsRepo) GetByID(ctx context.Context, id int64) (booking.Booking, error) {
	var b booking.Booking

	err := r.prom.ObserveDB("bookings.get_by_id", func() error {
		var err error
		b, err = scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, err
	}
	return b, nil
}

// List returns every booking, or only ownerID's when ownerID is non-nil.
func (r *BookingsRepo) List(ctx context.Context, ownerID *int64) ([]booking.Booking, error) {
	var rows pgx.Rows

	err := r.prom.ObserveDB("bookings.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE ($1::BIGINT IS NULL OR user_id = $1)
		ORDER BY created_at DESC, id DESC`, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]booking.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// lockForWrite loads the row FOR UPDATE and runs guard against it.
func (r *BookingsRepo) lockForWrite(ctx context.Context, tx pgx.Tx, id int64, guard booking.Guard) (booking.Booking, error) {
	var cur booking.Booking

	err := r.prom.ObserveDB("bookings.lock", func() error {
		var err error
		cur, err = scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, err
	}

	if guard != nil {
		if err := guard(cur); err != nil {
			return booking.Booking{}, err
		}
	}
	return cur, nil
}

func (r *BookingsRepo) Update(ctx context.Context, id int64, req booking.UpdateRequest, guard booking.Guard, outbox booking.Outbox) (b booking.Booking, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	before, err := r.lockForWrite(ctx, tx, id, guard)
	if err != nil {
		return
	}

	var status *string
	if req.Status != nil {
		s := string(*req.Status)
		status = &s
	}
	clearNotes := req.Notes != nil && booking.TrimText(req.Notes) == nil

	err = r.prom.ObserveDB("bookings.update", func() error {
		var e error
		b, e = scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET participants_count = COALESCE($2, participants_count),
		    preferred_date     = COALESCE($3, preferred_date),
		    status             = COALESCE($4, status),
		    notes              = CASE WHEN $6::BOOLEAN THEN NULL ELSE COALESCE($5, notes) END,
		    updated_at         = NOW()
		WHERE id = $1
		RETURNING `+bookingColumns,
			id, req.ParticipantsCount, req.PreferredDate, status, booking.TrimText(req.Notes), clearNotes,
		))
		return e
	})
	if err != nil {
		return
	}

	if err = r.enqueue(ctx, tx, outbox, before, b); err != nil {
		return
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}
	if before.Status != b.Status {
		r.prom.ObserveBookingTransition(string(before.Status), string(b.Status))
	}
	return
}

func (r *BookingsRepo) Delete(ctx context.Context, id int64, guard booking.Guard) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err = r.lockForWrite(ctx, tx, id, guard); err != nil {
		return
	}

	err = r.prom.ObserveDB("bookings.delete", func() error {
		_, e := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return
	}

	return tx.Commit(ctx)
}

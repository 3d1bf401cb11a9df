package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/delivery"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveriesRepo is the send ledger that keeps a retried job from notifying
// the same recipient twice.
type DeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *DeliveriesRepo {
	return &DeliveriesRepo{pool: pool, prom: prom}
}

// TryStart claims the delivery for jobID. It returns delivery.ErrAlreadySent
// or delivery.ErrInProgress when another attempt owns it.
func (r *DeliveriesRepo) TryStart(ctx context.Context, jobID, kind string, bookingID int64, recipient string) error {
	var inserted bool
	err := r.prom.ObserveDB("deliveries.try_start.insert", func() error {
		tag, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (job_id, kind, booking_id, recipient, status)
		VALUES ($1, $2, $3, $4, 'sending')
		ON CONFLICT (job_id) DO NOTHING`, jobID, kind, bookingID, recipient)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}

	// A failed row may be reclaimed; only one worker wins the flip.
	var reclaimed bool
	err = r.prom.ObserveDB("deliveries.try_start.reclaim", func() error {
		tag, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sending',
		    recipient = $2,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE job_id = $1 AND status = 'failed'`, jobID, recipient)
		if err != nil {
			return err
		}
		reclaimed = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return err
	}
	if reclaimed {
		return nil
	}

	var (
		status string
		sentAt *time.Time
	)
	err = r.prom.ObserveDB("deliveries.try_start.status", func() error {
		return r.pool.QueryRow(ctx, `SELECT status, sent_at FROM notification_deliveries WHERE job_id = $1`, jobID).Scan(&status, &sentAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	if sentAt != nil || status == "sent" {
		return delivery.ErrAlreadySent
	}
	return delivery.ErrInProgress
}

func (r *DeliveriesRepo) MarkSent(ctx context.Context, jobID string) error {
	return r.prom.ObserveDB("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sent',
		    sent_at = NOW(),
		    last_error = NULL,
		    updated_at = NOW()
		WHERE job_id = $1`, jobID)
		return err
	})
}

func (r *DeliveriesRepo) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	return r.prom.ObserveDB("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'failed',
		    last_error = $2,
		    updated_at = NOW()
		WHERE job_id = $1`, jobID, errMsg)
		return err
	})
}

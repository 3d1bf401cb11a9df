package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/job"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

const jobColumns = `id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, idempotency_key, created_at, updated_at`

func scanJob(row pgx.Row) (job.Job, error) {
	var (
		j      job.Job
		status string
	)
	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &status,
		&j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LockedAt, &j.LockedBy,
		&j.LastError, &j.IdempotencyKey,
		&j.CreatedAt, &j.UpdatedAt,
	)
	j.Status = job.Status(status)
	return j, err
}

const insertJob = `
	INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, run_at, idempotency_key, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (idempotency_key) DO NOTHING`

func insertArgs(j job.Job) []any {
	return []any{j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt, j.IdempotencyKey, j.CreatedAt, j.UpdatedAt}
}

// Create enqueues a job. A duplicate idempotency key is a silent no-op.
func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.prom.ObserveDB("jobs.create", func() error {
		_, err := r.pool.Exec(ctx, insertJob, insertArgs(j)...)
		return err
	})
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

// CreateTx enqueues a job inside the caller's transaction.
func (r *JobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	err := r.prom.ObserveDB("jobs.create_tx", func() error {
		_, err := tx.Exec(ctx, insertJob, insertArgs(j)...)
		return err
	})
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (r *JobsRepo) exec(ctx context.Context, op, q string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, q, args...)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

// settle ends a claimed run. Only a job still in processing can settle, so a
// worker whose claim was requeued as stale cannot overwrite the new run.
func (r *JobsRepo) settle(ctx context.Context, op, id string, status job.Status, runAt *time.Time, lastErr *string) error {
	return r.exec(ctx, op, `
		UPDATE jobs
		SET status     = $2,
		    attempts   = attempts + 1,
		    run_at     = COALESCE($3, run_at),
		    last_error = $4,
		    locked_at  = NULL,
		    locked_by  = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`, id, string(status), runAt, lastErr)
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.settle(ctx, "jobs.mark_done", id, job.StatusDone, nil, nil)
}

// MarkFailed dead-letters the job.
func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.settle(ctx, "jobs.mark_failed", id, job.StatusFailed, nil, &errMsg)
}

// Reschedule returns the job to pending for a retry at runAt.
func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.settle(ctx, "jobs.reschedule", id, job.StatusPending, &runAt, &errMsg)
}

// ClaimNext locks the oldest runnable job for workerID using SKIP LOCKED so
// concurrent workers never claim the same row.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job

	err := r.prom.ObserveDB("jobs.claim_next", func() error {
		var err error
		j, err = scanJob(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM jobs
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+jobColumns, workerID))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return j, nil
}

// RequeueStaleProcessing releases jobs whose worker died mid-run.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 30
	}

	var rows int64
	err := r.prom.ObserveDB("jobs.requeue_stale", func() error {
		tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')`, secs)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	return rows, err
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	var j job.Job

	err := r.prom.ObserveDB("jobs.admin.get_by_id", func() error {
		var err error
		j, err = scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return j, nil
}

// List returns the most recently updated jobs, optionally by status.
func (r *JobsRepo) List(ctx context.Context, status *job.Status, limit int) ([]job.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}

	var rows pgx.Rows
	err := r.prom.ObserveDB("jobs.admin.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE ($1::TEXT IS NULL OR status = $1)
		ORDER BY updated_at DESC, id DESC
		LIMIT $2`, st, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Job, 0, limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// requeueFailed resets dead-lettered jobs with a fresh attempt budget. The
// caller supplies the WHERE clause picking which ones.
const requeueFailed = `
		UPDATE jobs
		SET status     = 'pending',
		    attempts   = 0,
		    run_at     = NOW(),
		    last_error = NULL,
		    locked_at  = NULL,
		    locked_by  = NULL,
		    updated_at = NOW()
		WHERE status = 'failed' AND `

// Retry requeues one failed job. A job in any other state is left alone and
// reported as ErrNotFailed.
func (r *JobsRepo) Retry(ctx context.Context, id string) error {
	err := r.exec(ctx, "jobs.admin.retry", requeueFailed+`id = $1`, id)
	if !errors.Is(err, job.ErrNotFound) {
		return err
	}

	var exists bool
	err = r.prom.ObserveDB("jobs.admin.retry.exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	})
	switch {
	case err != nil:
		return err
	case exists:
		return job.ErrNotFailed
	default:
		return job.ErrNotFound
	}
}

// RetryManyFailed requeues up to limit of the most recently failed jobs.
func (r *JobsRepo) RetryManyFailed(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 500)

	var tag pgconn.CommandTag
	err := r.prom.ObserveDB("jobs.admin.retry_many_failed", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, requeueFailed+`id IN (
			SELECT id FROM jobs
			WHERE status = 'failed'
			ORDER BY updated_at DESC
			LIMIT $1
		)`, limit)
		return err
	})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

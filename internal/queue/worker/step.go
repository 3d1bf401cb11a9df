package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/job"
)

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// ProcessOne claims and runs a single job. It reports whether a job was
// claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.deps.Jobs.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	// a claimed job runs to completion even if shutdown starts
	runCtx, cancelRun := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.JobTimeout)
	defer cancelRun()

	if w.deps.Prom != nil {
		w.deps.Prom.JobsInFlight.Inc()
		defer w.deps.Prom.JobsInFlight.Dec()
	}

	start := w.now()
	err = w.execute(runCtx, j)
	elapsed := w.now().Sub(start)

	if err != nil {
		result := w.handleFailure(runCtx, j, err)
		w.deps.Prom.ObserveJob(j.Type, result, elapsed)
		return true, nil
	}

	if err := w.deps.Jobs.MarkDone(runCtx, j.ID); err != nil {
		_ = w.deps.Jobs.MarkFailed(runCtx, j.ID, "mark_done_failed: "+err.Error())
		return true, fmt.Errorf("mark job %s done: %w", j.ID, err)
	}

	w.deps.Prom.ObserveJob(j.Type, "done", elapsed)
	w.deps.Log.InfoContext(runCtx, "job done", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)
	return true, nil
}

// handleFailure reschedules with backoff or dead-letters the job, returning
// the metric result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, jobErr error) string {
	msg := jobErr.Error()
	attempt := j.Attempts + 1

	if isPermanent(jobErr) || attempt >= j.MaxAttempts {
		if err := w.deps.Jobs.MarkFailed(ctx, j.ID, msg); err != nil {
			w.deps.Log.ErrorContext(ctx, "mark job failed", "job_id", j.ID, "err", err)
		}
		w.deps.Log.ErrorContext(ctx, "job failed", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "err", msg)
		return "failed"
	}

	runAt := w.now().Add(w.backoff(j.Attempts))
	if err := w.deps.Jobs.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.deps.Log.ErrorContext(ctx, "reschedule job", "job_id", j.ID, "err", err)
	}
	w.deps.Log.WarnContext(ctx, "job retry scheduled", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "run_at", runAt, "err", msg)
	return "retry"
}

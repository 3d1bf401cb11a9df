package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/tourhub/internal/domain/booking"
	"github.com/geocoder89/tourhub/internal/domain/job"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/notifications"
	"github.com/geocoder89/tourhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type BookingLookup interface {
	GetByID(ctx context.Context, id int64) (booking.Booking, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type TourLookup interface {
	GetByID(ctx context.Context, id int64) (tour.Tour, error)
}

// DeliveryLedger records sends so a retried job does not notify twice.
type DeliveryLedger interface {
	TryStart(ctx context.Context, jobID, kind string, bookingID int64, recipient string) error
	MarkSent(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	Concurrency   int
	JobTimeout    time.Duration
	StaleAfter    time.Duration
	ShutdownGrace time.Duration
	Retry         Backoff
}

type Deps struct {
	Jobs       JobsRepository
	Bookings   BookingLookup
	Users      UserLookup
	Tours      TourLookup
	Deliveries DeliveryLedger // optional
	Notifier   notifications.Notifier
	Log        *slog.Logger
	Prom       *observability.Prom // optional
	DB         Pinger              // optional, checked by /readyz
}

type Worker struct {
	cfg  Config
	deps Deps

	// overridable in tests
	backoff func(attempt int) time.Duration
	now     func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, deps Deps) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	return &Worker{
		cfg:     cfg,
		deps:    deps,
		backoff: cfg.Retry.withDefaults().Delay,
		now:     time.Now,
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls for jobs with cfg.Concurrency loops until ctx is cancelled, then
// waits up to cfg.ShutdownGrace for in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	log := w.deps.Log.With("worker_id", w.cfg.WorkerID)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, log.With("slot", slot))
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.requeueLoop(ctx, log)
	}()

	w.setReady(true)
	log.Info("worker started", "concurrency", w.cfg.Concurrency)

	<-ctx.Done()
	w.setReady(false)
	log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		return errors.New("worker shutdown grace period exceeded")
	}
}

func (w *Worker) loop(ctx context.Context, log *slog.Logger) {
	t := time.NewTicker(w.cfg.PollInterval)
	defer t.Stop()

	for {
		// drain while there is work, then wait for the next tick
		for {
			if ctx.Err() != nil {
				return
			}
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				log.Error("process job", "err", err)
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (w *Worker) requeueLoop(ctx context.Context, log *slog.Logger) {
	t := time.NewTicker(w.cfg.StaleAfter / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := w.deps.Jobs.RequeueStaleProcessing(ctx, w.cfg.StaleAfter)
			if err != nil {
				log.Error("requeue stale jobs", "err", err)
				continue
			}
			if n > 0 {
				log.Warn("requeued stale jobs", "count", n)
			}
		}
	}
}

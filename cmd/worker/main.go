package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/tourhub/internal/config"
	"github.com/geocoder89/tourhub/internal/db"
	"github.com/geocoder89/tourhub/internal/notifications"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/geocoder89/tourhub/internal/queue/worker"
	"github.com/geocoder89/tourhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	undoMaxProcs, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		log.Info(fmt.Sprintf(format, v...))
	}))
	if err != nil {
		return fmt.Errorf("set GOMAXPROCS: %w", err)
	}
	defer undoMaxProcs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.ServiceName + "-worker",
		Env:         cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
		ConnectTimeout:  cfg.DB.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	workerID := cfg.Worker.ID
	if workerID == "" {
		host, _ := os.Hostname()
		workerID = host + "-" + strconv.Itoa(os.Getpid())
	}

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenMaxCalls: 1,
			OnStateChange: func(from, to string) {
				log.Warn("notifier circuit state changed", "from", from, "to", to)
			},
		},
	)

	w := worker.New(worker.Config{
		WorkerID:      workerID,
		PollInterval:  cfg.Worker.PollInterval,
		Concurrency:   cfg.Worker.Concurrency,
		JobTimeout:    cfg.Worker.JobTimeout,
		StaleAfter:    cfg.Worker.StaleAfter,
		ShutdownGrace: 10 * time.Second,
		Retry: worker.Backoff{
			Base:   cfg.Worker.RetryBase,
			Max:    cfg.Worker.RetryMax,
			Jitter: worker.DefaultBackoff.Jitter,
		},
	}, worker.Deps{
		Jobs:       postgres.NewJobsRepo(pool, prom),
		Bookings:   postgres.NewBookingsRepo(pool, prom, nil),
		Users:      postgres.NewUsersRepo(pool, prom),
		Tours:      postgres.NewToursRepo(pool, prom),
		Deliveries: postgres.NewDeliveriesRepo(pool, prom),
		Notifier:   notifier,
		Log:        log,
		Prom:       prom,
		DB:         pool,
	})

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("worker health server starting", "port", cfg.Worker.HealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	runErr := w.Run(ctx)

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)

	if runErr != nil {
		return fmt.Errorf("worker stopped: %w", runErr)
	}
	log.Info("worker shutdown complete")
	return nil
}

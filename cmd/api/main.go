package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/cache"
	"github.com/geocoder89/tourhub/internal/config"
	"github.com/geocoder89/tourhub/internal/db"
	httpx "github.com/geocoder89/tourhub/internal/http"
	"github.com/geocoder89/tourhub/internal/http/handlers"
	"github.com/geocoder89/tourhub/internal/http/middlewares"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/geocoder89/tourhub/internal/redisclient"
	"github.com/geocoder89/tourhub/internal/repo/postgres"
	"github.com/geocoder89/tourhub/internal/revocation"
	"github.com/geocoder89/tourhub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
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
		ServiceName: cfg.ServiceName,
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
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
			return err
		}
	}

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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	usersRepo := postgres.NewUsersRepo(pool, prom)
	toursRepo := postgres.NewToursRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)
	bookingsRepo := postgres.NewBookingsRepo(pool, prom, jobsRepo)
	feedbacksRepo := postgres.NewFeedbacksRepo(pool, prom)

	hasher := security.NewHasher(cfg.BcryptRounds)

	created, err := db.EnsureAdminUser(ctx, usersRepo, hasher, cfg.Admin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Info("bootstrap admin created", "username", cfg.Admin.Username)
	}

	health := []handlers.Dependency{{Name: "postgres", Ping: pool}}

	var revocations revocation.Store
	if cfg.UsesRedis() {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}

		revocations = revocation.NewRedisStore(rdb.Raw())
		health = append(health, handlers.Dependency{Name: "redis", Ping: rdb})
	} else {
		mem := revocation.NewMemoryStore()
		go mem.Run(ctx, time.Minute, log)
		revocations = mem
	}
	log.Info("revocation backend ready", "backend", cfg.RevocationBackend)

	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	gate := auth.NewGate(tokens, revocations, usersRepo, cfg.AuthLookupTimeout)

	tourCache := cache.New(cfg.TourCacheTTL)

	loginLimiter := middlewares.NewRateLimiter(cfg.LoginRatePerMinute, time.Minute)
	bookingLimiter := middlewares.NewRateLimiter(cfg.BookingRatePerMin, time.Minute)
	go loginLimiter.Run(ctx, time.Minute, log)
	go bookingLimiter.Run(ctx, time.Minute, log)

	router := httpx.NewRouter(httpx.Deps{
		Log:         log,
		Env:         cfg.Env,
		ServiceName: cfg.ServiceName,
		CORSOrigins: cfg.CORSOrigins,
		LoginRate:   cfg.LoginRatePerMinute,
		BookingRate: cfg.BookingRatePerMin,

		LoginLimiter:   loginLimiter,
		BookingLimiter: bookingLimiter,

		Prom:        prom,
		Metrics:     reg,
		Gate:        gate,
		Hasher:      hasher,
		Tokens:      tokens,
		Revocations: revocations,
		Users:       usersRepo,
		Tours:       toursRepo,
		Bookings:    bookingsRepo,
		Feedbacks:   feedbacksRepo,
		Jobs:        jobsRepo,
		TourCache:   tourCache,
		Health:      health,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/tourhub/internal/auth"
	"github.com/geocoder89/tourhub/internal/cache"
	"github.com/geocoder89/tourhub/internal/db"
	apphttp "github.com/geocoder89/tourhub/internal/http"
	"github.com/geocoder89/tourhub/internal/http/handlers"
	"github.com/geocoder89/tourhub/internal/repo/postgres"
	"github.com/geocoder89/tourhub/internal/revocation"
	"github.com/geocoder89/tourhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type stack struct {
	router   *gin.Engine
	pool     *pgxpool.Pool
	users    *postgres.UsersRepo
	tours    *postgres.ToursRepo
	bookings *postgres.BookingsRepo
	jobs     *postgres.JobsRepo
	hasher   *security.Hasher
	log      *slog.Logger
	dsn      string
}

// setupStack migrates and truncates the database named by TEST_DB_DSN and
// wires the real router on top of it. Skips when no database is configured.
func setupStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := db.Migrate(dsn, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pg pool: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE notification_deliveries, jobs, feedbacks, bookings, tours, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}

	users := postgres.NewUsersRepo(pool, nil)
	tours := postgres.NewToursRepo(pool, nil)
	jobs := postgres.NewJobsRepo(pool, nil)
	bookings := postgres.NewBookingsRepo(pool, nil, jobs)
	feedbacks := postgres.NewFeedbacksRepo(pool, nil)

	hasher := security.NewHasher(bcrypt.MinCost)
	tokens := auth.NewManager("integration-secret-0123456789abcdef", 30*time.Minute)
	revocations := revocation.NewMemoryStore()

	router := apphttp.NewRouter(apphttp.Deps{
		Log:         log,
		Env:         "test",
		LoginRate:   1000,
		Gate:        auth.NewGate(tokens, revocations, users, time.Second),
		Hasher:      hasher,
		Tokens:      tokens,
		Revocations: revocations,
		Users:       users,
		Tours:       tours,
		Bookings:    bookings,
		Feedbacks:   feedbacks,
		Jobs:        jobs,
		TourCache:   cache.New(time.Second),
		Health:      []handlers.Dependency{{Name: "postgres", Ping: pool}},
	})

	return &stack{
		router:   router,
		pool:     pool,
		users:    users,
		tours:    tours,
		bookings: bookings,
		jobs:     jobs,
		hasher:   hasher,
		log:      log,
		dsn:      dsn,
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/geocoder89/tourhub/internal/config"
	"github.com/geocoder89/tourhub/internal/db"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/geocoder89/tourhub/internal/repo/postgres"
	"github.com/geocoder89/tourhub/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.Env)
	ctx := context.Background()

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
		ConnectTimeout:  cfg.DB.ConnectTimeout,
	})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	seeded, err := db.SeedSampleData(ctx,
		postgres.NewUsersRepo(pool, nil),
		postgres.NewToursRepo(pool, nil),
		security.NewHasher(cfg.BcryptRounds),
		log,
	)
	if err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
	if !seeded {
		log.Info("users table not empty, skipping seed")
		return
	}
	log.Info("seed complete")
}

package db

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/geocoder89/tourhub/internal/config"
	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/repo/memory"
	"github.com/geocoder89/tourhub/internal/security"
	"golang.org/x/crypto/bcrypt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureAdminUser(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUsersRepo()
	hasher := security.NewHasher(bcrypt.MinCost)

	created, err := EnsureAdminUser(ctx, users, hasher, config.AdminConfig{})
	if err != nil || created {
		t.Fatalf("unconfigured admin: created=%v err=%v", created, err)
	}

	cfg := config.AdminConfig{Username: " Root ", Password: "s3cret!", FullName: "site owner"}
	created, err = EnsureAdminUser(ctx, users, hasher, cfg)
	if err != nil || !created {
		t.Fatalf("first run: created=%v err=%v", created, err)
	}

	u, err := users.GetByUsername(ctx, "root")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Role != user.RoleAdmin || !u.IsActive || u.FullName != "Site Owner" || u.Email != "root@localhost" {
		t.Fatalf("unexpected admin: %+v", u)
	}
	if !hasher.Verify("s3cret!", u.PasswordHash) {
		t.Fatalf("password not hashed correctly")
	}

	created, err = EnsureAdminUser(ctx, users, hasher, cfg)
	if err != nil || created {
		t.Fatalf("second run: created=%v err=%v", created, err)
	}
}

func TestSeedSampleData(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUsersRepo()
	tours := memory.NewToursRepo()
	hasher := security.NewHasher(bcrypt.MinCost)

	seeded, err := SeedSampleData(ctx, users, tours, hasher, discardLogger())
	if err != nil || !seeded {
		t.Fatalf("seed: seeded=%v err=%v", seeded, err)
	}

	n, _ := users.Count(ctx)
	if n != 3 {
		t.Fatalf("users = %d, want 3", n)
	}
	active, _ := tours.ListActive(ctx)
	if len(active) != 3 {
		t.Fatalf("tours = %d, want 3", len(active))
	}

	leader, err := users.GetByUsername(ctx, "leader")
	if err != nil || leader.Role != user.RoleLeader || !hasher.Verify("leader123", leader.PasswordHash) {
		t.Fatalf("leader not seeded correctly: %+v err=%v", leader, err)
	}

	seeded, err = SeedSampleData(ctx, users, tours, hasher, discardLogger())
	if err != nil || seeded {
		t.Fatalf("reseed: seeded=%v err=%v", seeded, err)
	}
}

package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/tourhub/internal/config"
	"github.com/geocoder89/tourhub/internal/domain/tour"
	"github.com/geocoder89/tourhub/internal/domain/user"
)

type SeedUsers interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Count(ctx context.Context) (int, error)
}

type SeedTours interface {
	Create(ctx context.Context, req tour.CreateRequest) (tour.Tour, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// EnsureAdminUser creates the bootstrap admin from cfg when it does not exist.
// Nothing happens unless both username and password are configured.
func EnsureAdminUser(ctx context.Context, users SeedUsers, hasher PasswordHasher, cfg config.AdminConfig) (bool, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return false, nil
	}

	username := user.NormalizeUsername(cfg.Username)
	_, err := users.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	email := cfg.Email
	if email == "" {
		email = username + "@localhost"
	}
	fullName, err := user.NormalizeFullName(cfg.FullName)
	if err != nil {
		fullName = "System Administrator"
	}

	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return false, err
	}

	_, err = users.Create(ctx, user.User{
		Username:     username,
		Email:        user.NormalizeEmail(email),
		FullName:     fullName,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		IsActive:     true,
	})
	if errors.Is(err, user.ErrAlreadyExists) {
		// another instance won the race, or the email is taken
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

type seedAccount struct {
	username, email, fullName, password string
	role                                user.Role
}

var sampleAccounts = []seedAccount{
	{"admin", "admin@example.com", "System Administrator", "admin123", user.RoleAdmin},
	{"leader", "leader@example.com", "Tour Leader", "leader123", user.RoleLeader},
	{"requestor", "requestor@example.com", "Tour Requestor", "requestor123", user.RoleRequestor},
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int { return &n }

var sampleTours = []tour.CreateRequest{
	{
		Title:           "Paris City Tour",
		Description:     strPtr("Explore the beautiful city of Paris with our expert guides"),
		Location:        "Paris, France",
		DurationDays:    3,
		MaxParticipants: 20,
		Price:           intPtr(50000),
	},
	{
		Title:           "Tokyo Adventure",
		Description:     strPtr("Experience the vibrant culture of Tokyo"),
		Location:        "Tokyo, Japan",
		DurationDays:    5,
		MaxParticipants: 15,
		Price:           intPtr(80000),
	},
	{
		Title:           "New York Highlights",
		Description:     strPtr("See the best of the Big Apple"),
		Location:        "New York, USA",
		DurationDays:    4,
		MaxParticipants: 25,
		Price:           intPtr(60000),
	},
}

// SeedSampleData loads demo accounts and tours into an empty database. It
// reports false when users already exist.
func SeedSampleData(ctx context.Context, users SeedUsers, tours SeedTours, hasher PasswordHasher, log *slog.Logger) (bool, error) {
	n, err := users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		log.Info("database already seeded", "users", n)
		return false, nil
	}

	for _, a := range sampleAccounts {
		hash, err := hasher.Hash(a.password)
		if err != nil {
			return false, err
		}
		_, err = users.Create(ctx, user.User{
			Username:     a.username,
			Email:        a.email,
			FullName:     a.fullName,
			PasswordHash: hash,
			Role:         a.role,
			IsActive:     true,
		})
		if err != nil {
			return false, fmt.Errorf("seed user %s: %w", a.username, err)
		}
		log.Info("seeded user", "username", a.username, "role", a.role.String())
	}

	for _, t := range sampleTours {
		if _, err := tours.Create(ctx, t); err != nil {
			return false, fmt.Errorf("seed tour %q: %w", t.Title, err)
		}
	}
	log.Info("seeded tours", "count", len(sampleTours))
	return true, nil
}

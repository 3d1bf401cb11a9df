package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/geocoder89/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const userColumns = `id, username, email, full_name, hashed_password, role, is_active, created_at`

func scanUser(row pgx.Row) (user.User, error) {
	var (
		u    user.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt); err != nil {
		return user.User{}, err
	}

	r, err := user.ParseRole(role)
	if err != nil {
		return user.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Role = r
	return u, nil
}

func (r *UsersRepo) get(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	return r.get(ctx, "users.get_by_id", "id = $1", id)
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.get(ctx, "users.get_by_username", "username = $1", username)
}

// Create inserts u and returns the stored row. u.ID and u.CreatedAt are
// assigned by the database.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var out user.User

	err := r.prom.ObserveDB("users.create", func() error {
		var err error
		out, err = scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, hashed_password, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
			u.Username, u.Email, u.FullName, u.PasswordHash, u.Role.String(), u.IsActive,
		))
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrAlreadyExists
		}
		return user.User{}, err
	}
	return out, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var rows pgx.Rows

	err := r.prom.ObserveDB("users.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UsersRepo) Update(ctx context.Context, id int64, req user.UpdateRequest) (user.User, error) {
	var role *string
	if req.Role != nil {
		s := req.Role.String()
		role = &s
	}

	var out user.User
	err := r.prom.ObserveDB("users.update", func() error {
		var err error
		out, err = scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET username   = COALESCE($2, username),
		    email      = COALESCE($3, email),
		    full_name  = COALESCE($4, full_name),
		    role       = COALESCE($5, role),
		    is_active  = COALESCE($6, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
			id, req.Username, req.Email, req.FullName, role, req.IsActive,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrAlreadyExists
		}
		return user.User{}, err
	}
	return out, nil
}

// Delete removes the account; bookings and feedback cascade.
func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("users.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.prom.ObserveDB("users.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	})
	return n, err
}

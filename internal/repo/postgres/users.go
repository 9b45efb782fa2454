package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, role, is_active, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}

	u.Role = user.Role(role)
	return u, nil
}

// mapErr runs after the metrics observation so a missing row is not
// counted as a DB error.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return user.ErrNotFound
	case IsUniqueViolation(err):
		return user.ErrEmailTaken
	default:
		return err
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			FROM users
			WHERE lower(email) = lower($1)`,
			email,
		))
		return err
	})
	if err = mapErr(err); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (u user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			FROM users
			WHERE id = $1`,
			id,
		))
		return err
	})
	if err = mapErr(err); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// Create inserts the user and returns it with the store-assigned id.
// A duplicate email surfaces as user.ErrEmailTaken.
func (r *UsersRepo) Create(ctx context.Context, in user.User) (u user.User, err error) {
	err = r.observe("users.create", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, role, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING `+userColumns,
			in.Email, in.PasswordHash, string(in.Role), in.IsActive, in.CreatedAt, in.UpdatedAt,
		))
		return err
	})
	if err = mapErr(err); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, in user.User) (u user.User, err error) {
	err = r.observe("users.update", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			SET email = $2,
				password_hash = $3,
				role = $4,
				is_active = $5,
				updated_at = $6
			WHERE id = $1
			RETURNING `+userColumns,
			in.ID, in.Email, in.PasswordHash, string(in.Role), in.IsActive, in.UpdatedAt,
		))
		return err
	})
	if err = mapErr(err); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.observe("users.delete", func() error {
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

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// EnsureAdminUser creates the configured admin account if it does not exist.
// Sign-up only ever produces USER accounts, so this is how an ADMIN appears.
func EnsureAdminUser(ctx context.Context, store AdminStore, hasher PasswordHasher, cfg config.AdminConfig) (bool, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return false, nil
	}

	// check if the user exists

	_, err := store.GetByEmail(ctx, cfg.Email)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(cfg.Password)

	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	_, err = store.Create(ctx, user.User{
		Email:        cfg.Email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if errors.Is(err, user.ErrEmailTaken) {
		// another instance seeded it first
		return false, nil
	}

	return err == nil, err
}

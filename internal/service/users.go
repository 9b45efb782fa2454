package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/accounts/internal/broker"
	"github.com/geocoder89/accounts/internal/domain/user"
)

// UserService covers profile reads and the owner's update/delete. Ownership
// is checked by the HTTP guards before these run.
type UserService struct {
	users  UserStore
	hasher PasswordHasher
	events broker.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewUserService(users UserStore, hasher PasswordHasher, events broker.Publisher, log *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

func (s *UserService) Get(ctx context.Context, id int64) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("lookup user by id: %w", err)
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id int64, in user.Credentials) (user.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if !strings.EqualFold(u.Email, in.Email) {
		other, err := s.users.GetByEmail(ctx, in.Email)

		switch {
		case err == nil && other.ID != u.ID:
			return user.User{}, ErrConflict
		case err != nil && !errors.Is(err, user.ErrNotFound):
			return user.User{}, fmt.Errorf("lookup user by email: %w", err)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u.Email = in.Email
	u.PasswordHash = hash
	u.UpdatedAt = s.now().UTC()

	updated, err := s.users.Update(ctx, u)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			return user.User{}, ErrConflict
		case errors.Is(err, user.ErrNotFound):
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("update user: %w", err)
	}

	s.log.InfoContext(ctx, "user updated", "user_id", updated.ID)
	return updated, nil
}

// Delete removes the record and then announces user_deleted with
// isActive=false, the account's terminal state.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	emitEvent(ctx, s.events, s.log, broker.TopicUserDeleted, broker.AccountMessage(u.ID, string(u.Role), false))

	s.log.InfoContext(ctx, "user deleted", "user_id", u.ID)
	return nil
}

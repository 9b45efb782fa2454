package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/geocoder89/accounts/internal/domain/user"
)

// UsersRepo is a process-local user store. Email uniqueness is enforced
// under the write lock, matching the UNIQUE(email) constraint in Postgres.
type UsersRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[int64]user.User),
	}
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if sameEmail(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(u.Email, 0) {
		return user.User{}, user.ErrEmailTaken
	}

	r.nextID++
	u.ID = r.nextID
	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) Update(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[u.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if r.emailTakenLocked(u.Email, u.ID) {
		return user.User{}, user.ErrEmailTaken
	}

	r.items[u.ID] = u
	return u, nil
}

func (r *UsersRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *UsersRepo) Ping(context.Context) error { return nil }

func (r *UsersRepo) emailTakenLocked(email string, exceptID int64) bool {
	for id, existing := range r.items {
		if id != exceptID && sameEmail(existing.Email, email) {
			return true
		}
	}
	return false
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(a, b)
}

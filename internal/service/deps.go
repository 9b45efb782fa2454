package service

import (
	"context"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/domain/user"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type TokenIssuer interface {
	GenerateAccessToken(p auth.Payload) (string, error)
	GenerateRefreshToken(p auth.Payload) (string, error)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
}

func payloadFor(u user.User) auth.Payload {
	return auth.Payload{
		UserID: u.ID,
		Email:  u.Email,
		Role:   string(u.Role),
	}
}

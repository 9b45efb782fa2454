package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/broker"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/observability"
)

type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	events broker.Publisher
	log    *slog.Logger
	prom   *observability.Prom
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, events broker.Publisher, log *slog.Logger, prom *observability.Prom) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		events: events,
		log:    log,
		prom:   prom,
		now:    time.Now,
	}
}

// ValidateUser returns the stored user when email and password match.
// Unknown email and wrong password are both reported as ok=false; err is
// only set for store failures.
func (s *AuthService) ValidateUser(ctx context.Context, email, password string) (user.User, bool, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// keep timing in line with the known-email path
			s.hasher.Verify(password, s.placeholderHash())
			return user.User{}, false, nil
		}
		return user.User{}, false, fmt.Errorf("lookup user by email: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return user.User{}, false, nil
	}

	return u, true, nil
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (TokenPair, error) {
	u, ok, err := s.ValidateUser(ctx, email, password)

	if err != nil {
		return TokenPair{}, err
	}

	if !ok {
		s.prom.ObserveAuth("signin", "invalid_credentials")
		s.log.InfoContext(ctx, "sign-in rejected", "reason", "invalid_credentials")
		return TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, err
	}

	s.prom.ObserveAuth("signin", "ok")
	s.log.InfoContext(ctx, "sign-in succeeded", "user_id", u.ID)
	return pair, nil
}

func (s *AuthService) SignUp(ctx context.Context, email, password string) (TokenPair, error) {
	_, err := s.users.GetByEmail(ctx, email)

	if err == nil {
		s.prom.ObserveAuth("signup", "conflict")
		return TokenPair{}, ErrConflict
	}

	if !errors.Is(err, user.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := s.hasher.Hash(password)

	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()

	created, err := s.users.Create(ctx, user.User{
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if err != nil {
		// lost the race against a concurrent sign-up for the same email
		if errors.Is(err, user.ErrEmailTaken) {
			s.prom.ObserveAuth("signup", "conflict")
			return TokenPair{}, ErrConflict
		}
		return TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	s.emit(ctx, broker.TopicUserCreated, broker.AccountMessage(created.ID, string(created.Role), created.IsActive))

	pair, err := s.issuePair(created)
	if err != nil {
		return TokenPair{}, err
	}

	s.prom.ObserveAuth("signup", "ok")
	s.log.InfoContext(ctx, "user signed up", "user_id", created.ID)
	return pair, nil
}

// Refresh mints a new access token for the subject of an already verified
// refresh token. The subject is resolved by id and must still hold email;
// an email that has since moved to another account does not follow it.
// It never issues a new refresh token.
func (s *AuthService) Refresh(ctx context.Context, subjectID int64, email string) (AccessToken, error) {
	u, err := s.users.GetByID(ctx, subjectID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.ObserveAuth("refresh", "unknown_subject")
			return AccessToken{}, ErrUnauthorized
		}
		return AccessToken{}, fmt.Errorf("lookup user by id: %w", err)
	}

	if !strings.EqualFold(u.Email, email) {
		s.prom.ObserveAuth("refresh", "email_mismatch")
		s.log.InfoContext(ctx, "refresh rejected", "reason", "email_mismatch", "user_id", u.ID)
		return AccessToken{}, ErrUnauthorized
	}

	raw, err := s.tokens.GenerateAccessToken(payloadFor(u))
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}

	s.prom.ObserveAuth("refresh", "ok")
	return AccessToken{AccessToken: raw}, nil
}

// ValidateUserRole binds a verified access token to the user as currently
// stored. A deleted user or a role that changed since issuance is rejected.
func (s *AuthService) ValidateUserRole(ctx context.Context, p auth.Payload) (auth.Identity, error) {
	u, err := s.users.GetByID(ctx, p.UserID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.ObserveAuth("guard", "unknown_subject")
			return auth.Identity{}, ErrUnauthorized
		}
		return auth.Identity{}, fmt.Errorf("lookup user by id: %w", err)
	}

	if string(u.Role) != p.Role {
		s.prom.ObserveAuth("guard", "stale_role")
		s.log.InfoContext(ctx, "access token role is stale", "user_id", u.ID, "token_role", p.Role, "current_role", string(u.Role))
		return auth.Identity{}, ErrUnauthorized
	}

	return auth.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Role:   string(u.Role),
	}, nil
}

func (s *AuthService) issuePair(u user.User) (TokenPair, error) {
	p := payloadFor(u)

	access, err := s.tokens.GenerateAccessToken(p)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.tokens.GenerateRefreshToken(p)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("placeholder-password")
	})
	return s.dummyHash
}

// emit is fire-and-forget: a publish failure never fails the request.
func (s *AuthService) emit(ctx context.Context, topic string, msg broker.Message) {
	emitEvent(ctx, s.events, s.log, topic, msg)
}

func emitEvent(ctx context.Context, events broker.Publisher, log *slog.Logger, topic string, msg broker.Message) {
	if events == nil {
		return
	}

	if err := events.Emit(ctx, topic, msg); err != nil {
		log.WarnContext(ctx, "account event not published", "topic", topic, "key", msg.Key, "err", err)
	}
}

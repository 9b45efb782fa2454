package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenType = errors.New("invalid token type")
)

// Payload is the claim shape shared by access and refresh tokens.
type Payload struct {
	UserID int64
	Email  string
	Role   string
}

type Claims struct {
	UserID    int64  `json:"sub"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

func (c *Claims) Payload() Payload {
	return Payload{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// Identity is what the guards attach to a verified request.
type Identity struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// Issuer signs and verifies the two token classes. Each class has its own
// secret so one class can never verify as the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source. Used by tests to move past expiry.
func (m *Issuer) WithClock(now func() time.Time) *Issuer {
	m.now = now
	return m
}

func (m *Issuer) GenerateAccessToken(p Payload) (string, error) {
	return m.sign(p, TokenTypeAccess, m.accessSecret, m.accessTTL)
}

func (m *Issuer) GenerateRefreshToken(p Payload) (string, error) {
	return m.sign(p, TokenTypeRefresh, m.refreshSecret, m.refreshTTL)
}

func (m *Issuer) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TokenTypeAccess, m.accessSecret)
}

func (m *Issuer) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TokenTypeRefresh, m.refreshSecret)
}

func (m *Issuer) sign(p Payload, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		UserID:    p.UserID,
		Email:     p.Email,
		Role:      p.Role,
		TokenType: tokenType,
		JTI:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (m *Issuer) verify(tokenStr, tokenType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/accounts/internal/actorctx"
	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/service"
	"github.com/gin-gonic/gin"
)

// CtxIdentity holds the auth.Identity attached by either token guard.
const CtxIdentity = "auth.identity"

// identityLookupTimeout bounds the stored-role check done on every access token.
const identityLookupTimeout = 2 * time.Second

// Keep these small so tests can fake them easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
	VerifyRefreshToken(token string) (*auth.Claims, error)
}

type RoleValidator interface {
	ValidateUserRole(ctx context.Context, p auth.Payload) (auth.Identity, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	roles  RoleValidator
	log    *slog.Logger
}

func NewAuthMiddleware(tokens TokenVerifier, roles RoleValidator, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, roles: roles, log: log}
}

// RequireAccessToken verifies the bearer token against the access secret,
// then re-checks the claimed role against the stored user.
func (m *AuthMiddleware) RequireAccessToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		claims, err := m.tokens.VerifyAccessToken(raw)
		if err != nil {
			abortTokenError(c, err, "Invalid or expired access token")
			return
		}

		cctx, cancel := config.WithTimeout(c.Request.Context(), identityLookupTimeout)
		identity, err := m.roles.ValidateUserRole(cctx, claims.Payload())
		cancel()
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				abortWithError(c, http.StatusUnauthorized, "unauthorized", "Access token no longer matches the account")
				return
			}
			m.log.ErrorContext(c.Request.Context(), "role validation failed", "err", err)
			abortWithError(c, http.StatusInternalServerError, "internal_error", "Could not verify identity")
			return
		}

		c.Set(CtxIdentity, identity)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), identity.UserID))
		c.Next()
	}
}

// RequireRefreshToken verifies against the refresh secret only. The role is
// not re-checked and is not attached.
func (m *AuthMiddleware) RequireRefreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		claims, err := m.tokens.VerifyRefreshToken(raw)
		if err != nil {
			abortTokenError(c, err, "Invalid or expired refresh token")
			return
		}

		c.Set(CtxIdentity, auth.Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
		})
		c.Next()
	}
}

// IdentityFromContext returns the identity attached by one of the guards.
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")

	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func abortTokenError(c *gin.Context, err error, message string) {
	code := "invalid_token"
	if errors.Is(err, auth.ErrTokenExpired) {
		code = "token_expired"
	}
	abortWithError(c, http.StatusUnauthorized, code, message)
}

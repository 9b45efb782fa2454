package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/http/middlewares"
	"github.com/geocoder89/accounts/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	SignIn(ctx context.Context, email, password string) (service.TokenPair, error)
	SignUp(ctx context.Context, email, password string) (service.TokenPair, error)
	Refresh(ctx context.Context, subjectID int64, email string) (service.AccessToken, error)
}

type AuthHandler struct {
	svc AuthService
	log *slog.Logger
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.Credentials

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt plus one lookup
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	pair, err := h.svc.SignIn(cctx, req.Email, req.Password)

	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}
		RespondServiceError(ctx, h.log, err, "Could not sign in")
		return
	}

	respondTokens(ctx, pair)
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.Credentials

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	pair, err := h.svc.SignUp(cctx, req.Email, req.Password)

	if err != nil {
		RespondServiceError(ctx, h.log, err, "Could not create user")
		return
	}

	respondTokens(ctx, pair)
}

// Refresh runs behind the refresh-token guard. The body email must name the
// token's subject.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req user.RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	identity, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !strings.EqualFold(identity.Email, req.Email) {
		RespondUnAuthorized(ctx, "invalid_refresh", "Refresh token does not belong to this account.")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	tok, err := h.svc.Refresh(cctx, identity.UserID, req.Email)

	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			RespondUnAuthorized(ctx, "invalid_refresh", "Refresh token no longer matches an account.")
			return
		}
		RespondServiceError(ctx, h.log, err, "Could not refresh session")
		return
	}

	ctx.Header("Cache-Control", "no-store")
	ctx.JSON(http.StatusOK, tok)
}

// Profile echoes the identity the access guard attached.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	identity, ok := middlewares.IdentityFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, identity)
}

func respondTokens(ctx *gin.Context, pair service.TokenPair) {
	ctx.Header("Cache-Control", "no-store")
	ctx.JSON(http.StatusOK, pair)
}

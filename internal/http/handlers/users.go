package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserService interface {
	Get(ctx context.Context, id int64) (user.User, error)
	Update(ctx context.Context, id int64, in user.Credentials) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

// UsersHandler assumes the ownership guard already ran, so the path id is
// known to be a positive integer the caller may act on.
type UsersHandler struct {
	svc UserService
	log *slog.Logger
}

func NewUsersHandler(svc UserService, log *slog.Logger) *UsersHandler {
	return &UsersHandler{svc: svc, log: log}
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.svc.Get(cctx, id)

	if err != nil {
		RespondServiceError(ctx, h.log, err, "Could not fetch user")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	var req user.Credentials

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.Update(cctx, id, req)

	if err != nil {
		RespondServiceError(ctx, h.log, err, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Delete(cctx, id); err != nil {
		RespondServiceError(ctx, h.log, err, "Could not delete user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User " + strconv.FormatInt(id, 10) + " deleted",
	})
}

func userIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid user id", gin.H{"field": "id"})
		return 0, false
	}
	return id, true
}

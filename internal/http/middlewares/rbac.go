package middlewares

import (
	"net/http"
	"strconv"

	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRoles admits the request only when the attached role is in the
// whitelist. An empty whitelist admits every authenticated caller.
func RequireRoles(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)

		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		if len(roles) > 0 && !hasRole(user.Role(identity.Role), roles) {
			abortWithError(c, http.StatusForbidden, "forbidden", "Role not permitted for this resource")
			return
		}
		c.Next()
	}
}

// RequireOwnership compares the numeric path parameter with the caller's id.
// Callers holding one of the bypass roles may act on any id.
func RequireOwnership(param string, bypass ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param(param), 10, 64)

		if err != nil || id <= 0 {
			abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid user id")
			return
		}

		identity, ok := IdentityFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		if identity.UserID != id && !hasRole(user.Role(identity.Role), bypass) {
			abortWithError(c, http.StatusForbidden, "forbidden", "You can only access your own account")
			return
		}
		c.Next()
	}
}

func hasRole(role user.Role, allowed []user.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

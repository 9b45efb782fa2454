package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET,POST,PUT,DELETE,OPTIONS"
	corsAllowHeaders  = "Authorization,Content-Type,If-None-Match,X-Request-Id"
	corsExposeHeaders = "ETag,X-Request-Id"
	corsMaxAge        = "600"
)

// CORSMiddleware echoes allowed origins back to the browser. Entries are
// exact origins, "*" for any origin, or "https://*.example.com" for
// subdomains. Preflights are answered here; a preflight from a disallowed
// origin gets 403 so the browser never sends the real request.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	match := originMatcher(allowedOrigins)

	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin == "" {
			ctx.Next()
			return
		}

		ctx.Writer.Header().Add("Vary", "Origin")
		ok := match(origin)

		preflight := ctx.Request.Method == http.MethodOptions &&
			ctx.GetHeader("Access-Control-Request-Method") != ""

		if !ok {
			if preflight {
				ctx.AbortWithStatus(http.StatusForbidden)
				return
			}
			ctx.Next()
			return
		}

		ctx.Header("Access-Control-Allow-Origin", origin)
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Expose-Headers", corsExposeHeaders)

		if preflight {
			ctx.Header("Access-Control-Allow-Methods", corsAllowMethods)
			ctx.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			ctx.Header("Access-Control-Max-Age", corsMaxAge)
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}

func originMatcher(allowedOrigins []string) func(string) bool {
	exact := make(map[string]struct{}, len(allowedOrigins))
	var suffixes []string
	anyOrigin := false

	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			anyOrigin = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			suffixes = append(suffixes, scheme+"://|"+strings.ToLower(host))
		default:
			exact[strings.ToLower(o)] = struct{}{}
		}
	}

	return func(origin string) bool {
		if anyOrigin {
			return true
		}
		origin = strings.ToLower(origin)
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, s := range suffixes {
			scheme, host, _ := strings.Cut(s, "|")
			rest, ok := strings.CutPrefix(origin, scheme)
			if ok && strings.HasSuffix(rest, host) && len(rest) > len(host) {
				return true
			}
		}
		return false
	}
}

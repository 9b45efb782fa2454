package middlewares

import "github.com/gin-gonic/gin"

const (
	apiCSP            = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	permissionsPolicy = "camera=(), microphone=(), geolocation=(), payment=()"
	hstsValue         = "max-age=63072000; includeSubDomains"
)

// SecurityHeaders sets response hardening headers for a JSON-only API.
// Strict-Transport-Security is only sent when hsts is set, so local plain
// HTTP development is not pinned to TLS.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", apiCSP)
		h.Set("Permissions-Policy", permissionsPolicy)
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")

		// handlers that support revalidation override this
		h.Set("Cache-Control", "no-store")
		if hsts {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		c.Next()
	}
}

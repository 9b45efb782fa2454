package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies. A declared Content-Length over the limit
// is refused with 413 before any handler runs; bodies of unknown length are
// wrapped so the binder reports the overrun as a bad request.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > limit {
			abortWithDetails(ctx, http.StatusRequestEntityTooLarge, "payload_too_large",
				"Request body too large", gin.H{"json": "body_too_large", "limit": limit})
			return
		}

		if ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)
		}

		ctx.Next()
	}
}

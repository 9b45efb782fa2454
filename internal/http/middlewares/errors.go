package middlewares

import "github.com/gin-gonic/gin"

// abortWithError writes the same error envelope the handlers use.
func abortWithError(c *gin.Context, status int, code, message string) {
	abortWithDetails(c, status, code, message, nil)
}

func abortWithDetails(c *gin.Context, status int, code, message string, details any) {
	reqID := c.GetString(CtxRequestID)
	if reqID == "" {
		reqID = c.GetHeader(requestIDHeader)
	}

	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	if reqID != "" {
		body["requestId"] = reqID
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

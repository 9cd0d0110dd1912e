package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "requestId"
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

// inboundIDHeaders are checked in order. API Gateway forwards its own id as X-Amzn-Trace-Id,
// which is not a usable request id, so it is not listed.
var inboundIDHeaders = []string{requestIDHeader, "X-Correlation-Id"}

// RequestID reuses a caller-supplied id when it is well formed and otherwise mints a UUID.
// The id is echoed in X-Request-Id and stored on the gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		for _, h := range inboundIDHeaders {
			if candidate := strings.TrimSpace(c.GetHeader(h)); validRequestID(candidate) {
				id = candidate
				break
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// validRequestID accepts ids made of letters, digits and -_.: so they are safe to log and echo.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// RequestIDFromContext fetches the request ID stored by RequestID middleware.
func RequestIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Get(requestIDKey); ok {
		s, _ := id.(string)
		return s
	}
	return ""
}

package response

import (
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Gin context keys set by RequestIDMiddleware.
const (
	ContextKeyRequestID = "request_id"
	contextKeyStartedAt = "request_started_at"
)

// Client-supplied IDs end up in log lines, so only short opaque tokens are
// echoed back.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestIDMiddleware tags every request with an ID, reusing a well-formed
// X-Request-ID header when the client sends one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if !requestIDPattern.MatchString(reqID) {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Set(contextKeyStartedAt, time.Now())
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// RequestID returns the ID assigned by RequestIDMiddleware, or "".
func RequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// Logger derives a logger carrying the request ID.
func Logger(c *gin.Context, base zerolog.Logger) zerolog.Logger {
	if id := RequestID(c); id != "" {
		return base.With().Str("request_id", id).Logger()
	}
	return base
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bookwell/scheduling-core/pkg/logger"
)

// RequestLogging is carried over from the teacher pack's auth-service
// internal/middleware/logging.go (request-ID generation, start/end log
// lines keyed by status-code severity), trimmed of the body-capture
// option this API has no use for.
func RequestLogging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		fields := []any{"request_id", requestID, "method", method, "path", path, "status", status, "duration_ms", duration.Milliseconds()}

		switch {
		case status >= 500:
			log.Error("request completed with server error", fields...)
		case status >= 400:
			log.Warn("request completed with client error", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

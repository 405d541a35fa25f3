package httpapi

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	loggerKey         = "logger"
	maxQueryLogLength = 512
)

// RequestID propagates X-Request-ID or generates a UUIDv4.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one access log line per request to accessLog, at a level picked by
// status. The request scoped logger is stored for Recovery and fail.
func Logger(accessLog *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := accessLog.With(
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", path,
			"remote_ip", c.ClientIP(),
		)
		c.Set(loggerKey, l)

		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"status", status,
			"latency", time.Since(start),
			"bytes_out", c.Writer.Size(),
			"query", utils.Truncate(c.Request.URL.RawQuery, maxQueryLogLength),
		}
		switch {
		case len(c.Errors) > 0:
			l.Error("request", append(kv, "errors", c.Errors.String())...)
		case status >= 500:
			l.Error("request", kv...)
		case status >= 400:
			l.Warn("request", kv...)
		default:
			l.Debug("request", kv...)
		}
	}
}

// Recovery turns panics into a JSON 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				loggerFrom(c).Error("panic recovered", "panic", rec, "stack", string(debug.Stack()))
				if !c.Writer.Written() {
					fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// loggerFrom returns the request scoped logger, or the default logger when Logger
// did not run.
func loggerFrom(c *gin.Context) *log.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*log.Logger); ok {
			return l
		}
	}
	return log.Default()
}

// AdminAuth requires "Authorization: Bearer <token>" when token is set.
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.Header("WWW-Authenticate", "Bearer")
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid admin token")
			return
		}
		c.Next()
	}
}

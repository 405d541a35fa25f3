package httpapi

import (
	"errors"
	"net/http"

	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/gin-gonic/gin"
)

// Stable, machine-readable error codes.
const (
	ErrCodeInvalidArgument  = "invalid_argument"
	ErrCodeIndexUnavailable = "index_unavailable"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		loggerFrom(c).Error("api error", "status", status, "code", code, "message", msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(requestIDHeader),
		Code:      code,
		Message:   msg,
	})
}

// failErr maps engine errors onto status codes.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, suggest.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, ErrCodeInvalidArgument, err.Error())
	case errors.Is(err, suggest.ErrIndexUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeIndexUnavailable, "index is not loaded yet")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

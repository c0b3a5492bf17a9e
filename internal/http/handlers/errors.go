package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/http/middleware"
	"github.com/tbourn/go-changingroom-backend/internal/scan"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

// Error codes carried in ErrorResponse.Code. Clients branch on these, not
// on the message.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"

	ErrCodeInvalidState  = "invalid_state" // transition not allowed from the item's or session's status
	ErrCodeCreateFailed  = "create_failed"
	ErrCodeListFailed    = "list_failed"
	ErrCodeResolveFailed = "resolve_failed"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"invalid_state"`
	Message   string `json:"message" example:"item 7f3c: cannot resolve from purchased"`
}

// Fail aborts with an ErrorResponse. Server errors are logged on the
// request logger; client errors only at debug.
func Fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	ev := lg.Debug()
	if status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Int("status", status).Str("code", code).Str("error", msg).Msg("request failed")

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

func fail(c *gin.Context, status int, code, msg string) { Fail(c, status, code, msg) }

// failService maps a service error onto the error envelope. Unknown errors
// become 500 with fallback as the code.
func failService(c *gin.Context, err error, fallback string) {
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &conflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrState):
		fail(c, http.StatusConflict, ErrCodeInvalidState, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidActor):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrEmptyTag),
		errors.Is(err, services.ErrEmptyBarcode),
		errors.Is(err, services.ErrInvalidOutcome),
		errors.Is(err, services.ErrInvalidDisposition),
		errors.Is(err, services.ErrInvalidUrgency),
		errors.Is(err, scan.ErrFormat):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}

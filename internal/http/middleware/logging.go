// Package middleware contains the Gin middleware of the changing room API.
//
// Request correlation and logging:
//
//   - RequestID assigns every request a correlation id (X-Request-ID).
//   - AccessLog (access_log.go) writes one scrubbed line per request and
//     attaches a request-scoped zerolog.Logger.
//   - RequestScope adds the store, actor and session to that logger once
//     the route and identity are known, so service logs written with
//     log.Ctx carry them.
//   - Recovery turns panics into the JSON 500 body.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey holds the request-scoped *zerolog.Logger.
	loggerKey = "logger"

	maxRequestIDLength = 128
)

// RequestID reuses a well-formed incoming X-Request-ID (scanner gateways
// set one per device call) and otherwise generates a UUID. The id is
// echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// validRequestID accepts printable ASCII without spaces, up to
// maxRequestIDLength bytes.
func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}

func requestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		return asString(v)
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// RequestScope enriches the request logger with the acting store and
// team member, and with the session when the matched route has one. Install
// it after Identity on the routes that need it.
func RequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		lc := LoggerFrom(c).With()
		if a, ok := ActorFrom(c); ok {
			lc = lc.Str("store_id", a.StoreID).Str("actor_id", a.ID)
			if a.Role != "" {
				lc = lc.Str("actor_role", a.Role)
			}
		}
		if sid := sessionParam(c); sid != "" {
			lc = lc.Str("session_id", sid)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// sessionParam returns the :id route parameter of session routes.
func sessionParam(c *gin.Context) string {
	if strings.Contains(c.FullPath(), "/sessions/:id") {
		return c.Param("id")
	}
	return ""
}

// Recovery logs a panic with its stack and answers 500 unless a response
// was already started.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", requestIDFrom(c)).
				Str("path", c.Request.URL.Path).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

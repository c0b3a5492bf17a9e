package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AccessLogOptions configures AccessLog.
type AccessLogOptions struct {
	// MaskHeaders are logged as "[REDACTED]" in addition to Authorization,
	// Cookie and Set-Cookie. Matching is case-insensitive.
	MaskHeaders []string
	// QuietPaths are logged at debug level on success (probes and scrapes).
	QuietPaths []string
	// MaxQueryLength caps the logged query string; <= 0 means 2048.
	MaxQueryLength int
}

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Requires a separator or a leading + so SKUs and tags made of digits
	// are left alone.
	phoneRE = regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?\(?\d{3}\)?[ .-]\d{3}[ .-]?\d{4}\b`)
)

// scrub removes customer contact details that staff sometimes type into
// search fields. Session, item and entry ids are operational and kept.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// AccessLog attaches a request-scoped logger (request id only; see
// RequestScope) and writes one structured line per request. Bodies are
// never logged. Level follows the outcome: error for 5xx or recorded gin
// errors, warn for 4xx, info otherwise.
func AccessLog(opts AccessLogOptions) gin.HandlerFunc {
	masked := map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}
	quiet := make(map[string]struct{}, len(opts.QuietPaths))
	for _, p := range opts.QuietPaths {
		quiet[p] = struct{}{}
	}
	maxQuery := opts.MaxQueryLength
	if maxQuery <= 0 {
		maxQuery = 2048
	}

	return func(c *gin.Context) {
		start := time.Now()
		rid := requestIDFrom(c)

		rl := log.With().Str("request_id", rid).Logger()
		c.Set(loggerKey, &rl)
		c.Request = c.Request.WithContext(rl.WithContext(c.Request.Context()))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			if _, ok := quiet[path]; ok {
				ev = log.Debug()
			} else {
				ev = log.Info()
			}
		}
		if !ev.Enabled() {
			return
		}

		headers := zerolog.Dict()
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers.Str(k, "[REDACTED]")
				continue
			}
			headers.Str(k, scrub(strings.Join(vv, ", ")))
		}

		query := scrub(c.Request.URL.RawQuery)
		if len(query) > maxQuery {
			query = query[:maxQuery] + "…"
		}

		actor, _ := ActorFrom(c)
		ev = ev.
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("store_id", actor.StoreID).
			Str("actor_id", actor.ID).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", headers)
		if sid := sessionParam(c); sid != "" {
			ev = ev.Str("session_id", sid)
		}
		if _, ok := GetIdempotencyKey(c); ok {
			ev = ev.Bool("replay", IsReplay(c))
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("http_request")
	}
}

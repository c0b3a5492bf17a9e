package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes every JSON line written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func findLog(lines []map[string]any, msg string) map[string]any {
	for _, l := range lines {
		if l["message"] == msg {
			return l
		}
	}
	return nil
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) { c.String(http.StatusOK, requestIDFrom(c)) })

	cases := []struct {
		name, in string
		keep     bool
	}{
		{"absent", "", false},
		{"propagated", "scanner-7:0001", true},
		{"with space", "bad id", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.in != "" {
				req.Header.Set(strings.ToLower(requestIDHeader), tc.in)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q body %q", got, w.Body.String())
			}
			if (got == tc.in) != tc.keep {
				t.Fatalf("in %q out %q keep=%v", tc.in, got, tc.keep)
			}
		})
	}
}

func TestRequestScope_AddsActorAndSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(AccessLogOptions{}), Identity(IdentityOptions{}), RequestScope())
	r.POST("/sessions/:id/items", func(c *gin.Context) {
		log.Ctx(c.Request.Context()).Info().Msg("item recorded")
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions/s-1/items", nil)
	req.Header.Set(HeaderActorID, "tm-1")
	req.Header.Set(HeaderStoreID, "store-1")
	req.Header.Set(HeaderActorRole, "lead")
	r.ServeHTTP(httptest.NewRecorder(), req)

	line := findLog(logLines(t, buf), "item recorded")
	if line == nil {
		t.Fatalf("service log missing:\n%s", buf.String())
	}
	for k, want := range map[string]string{"store_id": "store-1", "actor_id": "tm-1", "actor_role": "lead", "session_id": "s-1"} {
		if line[k] != want {
			t.Fatalf("%s = %v, want %s", k, line[k], want)
		}
	}
	if line["request_id"] == "" || line["request_id"] == nil {
		t.Fatalf("request_id missing: %v", line)
	}
}

func TestRequestScope_NoSessionOutsideSessionRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(AccessLog(AccessLogOptions{}), RequestScope())
	r.GET("/baskets/:id", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("basket read")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/baskets/b-1", nil))

	line := findLog(logLines(t, buf), "basket read")
	if line == nil {
		t.Fatal("log missing")
	}
	if _, ok := line["session_id"]; ok {
		t.Fatalf("unexpected session_id on basket route: %v", line)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != w.Header().Get(requestIDHeader) {
		t.Fatalf("unexpected body %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("error body written after response started: %q", w.Body.String())
	}

	if n := strings.Count(buf.String(), "panic recovered"); n != 2 {
		t.Fatalf("want 2 panic logs, got %d:\n%s", n, buf.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	LoggerFrom(c).Info().Msg("plain")
	if !strings.Contains(buf.String(), `"message":"plain"`) || strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected fallback output %s", buf.String())
	}
	if asString(3) != "" || asString("x") != "x" {
		t.Fatal("asString")
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func Test_scrub(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"barcode=0012345678905", "barcode=0012345678905"},
		{"tag=042&page=2", "tag=042&page=2"},
		{"q=jane.doe@example.com", "q=[REDACTED:email]"},
		{"phone=+1-555-123-4567", "phone=[REDACTED:phone]"},
		{"phone=555 123 4567", "phone=[REDACTED:phone]"},
		{"id=123e4567-e89b-12d3-a456-426614174000", "id=123e4567-e89b-12d3-a456-426614174000"},
	}
	for _, tc := range cases {
		if got := scrub(tc.in); got != tc.want {
			t.Errorf("scrub(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccessLog_FieldsAndRedaction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(AccessLogOptions{MaskHeaders: []string{"X-Api-Key"}}), Identity(IdentityOptions{}))
	r.GET("/sessions/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/sessions/s-9?q=jane@example.com", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Note", "call 555-123-4567")
	req.Header.Set(HeaderActorID, "tm-1")
	req.Header.Set(HeaderStoreID, "store-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, secret := range []string{"Bearer secret", "shhh", "jane@example.com", "555-123-4567"} {
		if strings.Contains(out, secret) {
			t.Fatalf("leaked %q:\n%s", secret, out)
		}
	}
	line := findLog(logLines(t, buf), "http_request")
	if line == nil {
		t.Fatalf("no access log:\n%s", out)
	}
	want := map[string]any{
		"level":      "info",
		"path":       "/sessions/:id",
		"session_id": "s-9",
		"store_id":   "store-1",
		"actor_id":   "tm-1",
		"status":     float64(200),
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("%s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["replay"]; ok {
		t.Fatal("replay logged without idempotency key")
	}
}

func TestAccessLog_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(AccessLog(AccessLogOptions{QuietPaths: []string{"/health"}, MaxQueryLength: 4}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(http.ErrHandlerTimeout)
		c.Status(http.StatusOK)
	})

	for _, p := range []string{"/health", "/missing?abcdefgh", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "debug" {
		t.Fatalf("probe logged at %v", lines[0]["level"])
	}
	if lines[1]["level"] != "warn" || lines[1]["path"] != "/missing" || lines[1]["query"] != "abcd…" {
		t.Fatalf("404 line %v", lines[1])
	}
	if lines[2]["level"] != "error" || lines[2]["errors"] == nil {
		t.Fatalf("gin error line %v", lines[2])
	}
}

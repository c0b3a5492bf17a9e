package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
)

func TestKeyByActorOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyByActorOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(ctxKeyActor, domain.Actor{ID: "tm-7", StoreID: "store-1"})
	if got := KeyByActorOrIP()(c); got != "actor:store-1/tm-7" {
		t.Fatalf("actor key = %q", got)
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{RPS: 2})
	if rl.burst != 1 || rl.ttl != 10*time.Minute || rl.key == nil {
		t.Fatalf("defaults not applied: burst=%d ttl=%v", rl.burst, rl.ttl)
	}
	if rl.limiter("k") != rl.limiter("k") {
		t.Fatal("bucket not reused")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitOptions{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }

	rl.limiter("a")
	rl.limiter("b")
	now = now.Add(30 * time.Second)
	rl.limiter("b")
	if rl.size() != 2 {
		t.Fatalf("size = %d", rl.size())
	}

	now = now.Add(45 * time.Second) // a idle 75s, b idle 45s
	rl.limiter("c")
	if rl.size() != 2 {
		t.Fatalf("want a evicted, size = %d", rl.size())
	}
	rl.mu.Lock()
	_, hasA := rl.buckets["a"]
	rl.mu.Unlock()
	if hasA {
		t.Fatal("idle bucket survived the sweep")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(RateLimitOptions{
		RPS:         0.5,
		Burst:       1,
		Key:         func(*gin.Context) string { return "shared" },
		ExemptPaths: []string{"/health"},
	})

	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") == "1" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/resolve", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path string, replay bool) *httptest.ResponseRecorder {
		method := http.MethodPost
		if path == "/health" {
			method = http.MethodGet
		}
		req := httptest.NewRequest(method, path, nil)
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("/resolve", false); w.Code != http.StatusOK {
		t.Fatalf("first request %d", w.Code)
	}
	w := do("/resolve", false)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request %d", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "2" {
		t.Fatalf("Retry-After = %q, want 2", ra)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "rate_limited" || body["request_id"] == "" {
		t.Fatalf("body %v err %v", body, err)
	}

	if w := do("/resolve", true); w.Code != http.StatusOK {
		t.Fatalf("replay was limited: %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := do("/health", false); w.Code != http.StatusOK {
			t.Fatalf("probe was limited: %d", w.Code)
		}
	}
}

func TestIsRateBypass(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatal("default should be false")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatal("non-bool should be false")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatal("want true")
	}
}

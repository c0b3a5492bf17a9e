package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "changingroom"

// unmatchedRoute labels requests that hit no registered route so probes for
// random URLs cannot grow the series count.
const unmatchedRoute = "unmatched"

// Labels are the registered route (never the raw URL), the method, the
// status code and the acting store. Stores are a small fixed set per
// deployment.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method, status and store.",
	}, []string{"method", "route", "status", "store"})

	replaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "idempotent_replays_total",
		Help:      "Resolution retries answered from a stored response.",
	}, []string{"route"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Request latency by route and method.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_inflight",
		Help:      "Requests currently being served.",
	})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size by route.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 7), // 256B .. 1MiB
	}, []string{"route"})
)

// Metrics records Prometheus request metrics. Serve them with
// promhttp.Handler().
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		inflight.Inc()
		start := time.Now()
		defer inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		store := ""
		if a, ok := ActorFrom(c); ok {
			store = a.StoreID
		}

		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), store).Inc()
		requestSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		if IsReplay(c) {
			replaysTotal.WithLabelValues(route).Inc()
		}
		if n := c.Writer.Size(); n >= 0 {
			responseBytes.WithLabelValues(route).Observe(float64(n))
		}
	}
}

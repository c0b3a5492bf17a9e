// Package httpapi wires the Gin transport to the changing-room services:
// the middleware chain, health probes, and the versioned API routes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/config"
	"github.com/tbourn/go-changingroom-backend/internal/http/handlers"
	"github.com/tbourn/go-changingroom-backend/internal/http/middleware"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
)

// maxBodyBytes caps request bodies. Scanner payloads are a few hundred bytes.
const maxBodyBytes = 1 << 20

// probePaths are excluded from access logs and rate limiting.
var probePaths = []string{"/health", "/ready", "/metrics"}

// RegisterRoutes installs the middleware chain and every endpoint on r.
//
// Order: tracing, request id, access log, recovery, body cap and gzip,
// metrics, identity, idempotency (so replays can skip the limiter), rate
// limit, CORS, security headers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, room *Room, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(middleware.AccessLogOptions{
			MaskHeaders: []string{"X-API-Key"},
			QuietPaths:  probePaths,
		}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.Metrics(),
		middleware.Identity(middleware.IdentityOptions{}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, replayLookup(db)),
		middleware.NewRateLimiter(middleware.RateLimitOptions{
			RPS:         cfg.RateRPS,
			Burst:       cfg.RateBurst,
			Key:         middleware.KeyByActorOrIP(),
			ExemptPaths: probePaths,
		}).Handler(),
		cors.New(corsConfig(cfg.CORS)),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:   cfg.Security.EnableHSTS,
			HSTSMaxAge:   cfg.Security.HSTSMaxAge,
			EnablePolicy: true,
			AllowCamera:  cfg.Security.AllowCamera,
		}),
	)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", ready(db))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Services{
		Sessions:    room.Sessions,
		Items:       room.Items,
		Reconcile:   room.Reconcile,
		Baskets:     room.Baskets,
		BackOfHouse: room.BackOfHouse,
		Shrinkage:   room.Shrinkage,
	}, handlers.Options{
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
		StaleAfter:     cfg.StaleSessionAfter,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Identity(middleware.IdentityOptions{Required: true}), middleware.RequestScope())

	// Sessions and the entry manifest
	api.POST("/sessions", h.OpenSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.GET("/sessions/:id/items", h.ListSessionItems)
	api.POST("/sessions/:id/items", h.RecordItem)
	api.DELETE("/sessions/:id/items/:itemId", h.RemoveItem)
	api.GET("/sessions/:id/basket", h.GetSessionBasket)
	api.GET("/tags/:tag/session", h.LookupTag)

	// Exit reconciliation
	api.POST("/exits", h.StartExit)
	api.GET("/sessions/:id/exit", h.GetExitState)
	api.POST("/sessions/:id/exit", h.ResumeExit)
	api.POST("/sessions/:id/exit/scan", h.ScanExitItem)
	api.POST("/sessions/:id/exit/resolve", h.ResolveExitItem)
	api.POST("/sessions/:id/exit/finish", h.FinishExit)
	api.POST("/sessions/:id/discrepancy/late-scan", h.LateScan)
	api.POST("/sessions/:id/discrepancy/lost", h.MarkLost)

	api.GET("/baskets", h.ListActiveBaskets)
	api.GET("/baskets/:id", h.GetBasket)
	api.POST("/baskets/:id/disposition", h.SetBasketDisposition)
	api.DELETE("/baskets/:id", h.DeleteBasket)

	api.GET("/back-of-house", h.ListBackOfHouse)
	api.GET("/back-of-house/count", h.CountBackOfHouse)
	api.POST("/back-of-house/:id/return", h.MarkReturned)

	api.GET("/shrinkage", h.ListShrinkage)
	api.GET("/shrinkage/count", h.CountShrinkage)
	api.GET("/shrinkage/lookup", h.LookupShrinkage)
	api.POST("/shrinkage/:id/recover", h.RecoverShrinkage)
}

func replayLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, actorID, sessionID, key string, now time.Time) (bool, error) {
		return repo.HasReplay(ctx, db, repo.ReplayKey{ActorID: actorID, SessionID: sessionID, Key: key}, now)
	}
}

// corsConfig allows any origin without credentials when no allowlist is
// configured.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "If-None-Match",
			middleware.HeaderActorID, middleware.HeaderStoreID, middleware.HeaderActorRole,
			middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Retry-After", handlers.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// ready pings the database.
func ready(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// Command server runs the changing-room HTTP API.
//
// @title       Changing Room API
// @version     1.0
// @description Session and item reconciliation for store changing rooms.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-changingroom-backend/docs"
	"github.com/tbourn/go-changingroom-backend/internal/cache"
	"github.com/tbourn/go-changingroom-backend/internal/config"
	httpapi "github.com/tbourn/go-changingroom-backend/internal/http"
	"github.com/tbourn/go-changingroom-backend/internal/observability"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/services"
	"github.com/tbourn/go-changingroom-backend/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, nil)
	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(repo.Options{
		Driver:  cfg.DBDriver,
		Path:    cfg.DBPath,
		URL:     cfg.DatabaseURL,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if cfg.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	// The session cache is optional; without Redis every lookup hits the database.
	var (
		rdb          *redis.Client
		sessionCache services.SessionCache
	)
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc := cache.NewRedisSessionCache(rdb, cfg.Redis.TTL)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, session cache disabled")
			_ = rdb.Close()
			rdb = nil
		} else {
			sessionCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("session cache enabled")
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	room := httpapi.NewRoom(db, sessionCache, cfg)
	httpapi.RegisterRoutes(r, db, room, cfg)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorDone := make(chan struct{})
	janitor := &services.Janitor{
		DB:          db,
		Baskets:     room.Baskets,
		Interval:    cfg.JanitorInterval,
		BasketGrace: cfg.BasketGracePeriod,
		StaleAfter:  cfg.StaleSessionAfter,
	}
	go func() {
		defer close(janitorDone)
		janitor.Run(janitorCtx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	stopJanitor()
	<-janitorDone

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}

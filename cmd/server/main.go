// Command server runs the lecture discussions HTTP API.
//
// @title                      Lecture Discussions API
// @version                    1.0
// @description                Threaded Q&A attached to course lectures: discussions, replies, likes, moderation and course analytics.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/lecture-discussions/docs"
	"github.com/tbourn/lecture-discussions/internal/config"
	httpapi "github.com/tbourn/lecture-discussions/internal/http"
	"github.com/tbourn/lecture-discussions/internal/observability"
	"github.com/tbourn/lecture-discussions/internal/repo"
	"github.com/tbourn/lecture-discussions/internal/services"
	"github.com/tbourn/lecture-discussions/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real environments inject variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	release := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.SetupLogging(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: release,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, release)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	ext := httpapi.Integrations{}

	cache, err := services.NewRedisStatsCache(cfg.RedisURL, cfg.StatsCacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	if cache.Enabled() {
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; stats cache disabled")
			_ = cache.Close()
		} else {
			ext.Cache = cache
			defer func() { _ = cache.Close() }()
		}
	}

	if idx := services.NewMeiliIndexer(cfg.Search.Host, cfg.Search.APIKey, cfg.Search.Index); idx != nil {
		if err := idx.Configure(); err != nil {
			log.Warn().Err(err).Str("host", cfg.Search.Host).Msg("meilisearch settings not applied")
		}
		ext.Indexer = idx
	}

	docs.SwaggerInfo.Version = release
	docs.SwaggerInfo.BasePath = cfg.APIBasePath

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	if err := httpapi.RegisterRoutes(r, db, ext, cfg); err != nil {
		log.Fatal().Err(err).Msg("route setup failed")
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db_driver", cfg.DBDriver).
			Str("auth_mode", cfg.AuthMode).
			Bool("stats_cache", ext.Cache != nil).
			Bool("search_index", ext.Indexer != nil).
			Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

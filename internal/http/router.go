// Package httpapi wires the HTTP transport (Gin) to the discussion service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Identity resolved once, before anything keyed by user
//   - All dependencies injected
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/lecture-discussions/internal/config"
	"github.com/tbourn/lecture-discussions/internal/http/handlers"
	"github.com/tbourn/lecture-discussions/internal/http/middleware"
	"github.com/tbourn/lecture-discussions/internal/policy"
	"github.com/tbourn/lecture-discussions/internal/repo"
	"github.com/tbourn/lecture-discussions/internal/services"
)

// idempotencyKeyMaxLen matches the width of the idempotencies.key column.
const idempotencyKeyMaxLen = 128

// Integrations carries the optional collaborators of the discussion service.
// Nil fields are disabled.
type Integrations struct {
	Cache   services.StatsCache
	Indexer services.Indexer
}

var (
	allowMethods  = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	allowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderUserName, middleware.HeaderUserRole, middleware.HeaderIdempotencyKey}
	exposeHeaders = []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, and then mounts the versioned
// discussions API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//
// and, on the API group only:
//  8. Authenticate: resolve the actor (401 otherwise)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ext Integrations, cfg config.Config) error {
	r.HandleMethodNotAllowed = true

	flagMode, err := policy.ParseFlagMode(cfg.FlagPolicy)
	if err != nil {
		return err
	}
	auth := middleware.AuthOptions{Mode: cfg.AuthMode, Secret: []byte(cfg.JWTSecret)}
	if auth.Mode == middleware.AuthModeJWT && len(auth.Secret) == 0 {
		return fmt.Errorf("jwt auth requires a secret")
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/integrations
	svc := &services.DiscussionService{
		DB:              db,
		Policy:          policy.Policy{Flag: flagMode},
		Cache:           ext.Cache,
		Indexer:         ext.Indexer,
		MaxTitleRunes:   cfg.MaxTitleRunes,
		MaxContentRunes: cfg.MaxContentRunes,
	}
	idem := repo.IdempotencyStore{DB: db, TTL: cfg.IdempotencyTTL}
	h := handlers.New(svc, idem, repo.ListStamps{DB: db})

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Authenticate(auth),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: idempotencyKeyMaxLen},
			func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
				rec, err := idem.Lookup(ctx, userID, scope, key, now)
				if err != nil {
					return false, err
				}
				return rec != nil, nil
			},
		),
		rl.Handler(),
	)
	{
		// Discussions
		api.POST("/discussions", h.CreateDiscussion)
		api.GET("/discussions/:courseId/:lectureId", h.ListLectureDiscussions)
		api.POST("/discussions/:discussionId/reply", h.AddReply)
		api.POST("/discussions/:discussionId/like", h.ToggleLike)
		api.POST("/discussions/:discussionId/replies/:replyId/like", h.ToggleReplyLike)

		// Moderation
		api.PATCH("/discussions/:discussionId/pin", h.TogglePin)
		api.PATCH("/discussions/:discussionId/resolve", h.ToggleResolved)
		api.PATCH("/discussions/:discussionId/flag", h.ToggleFlagged)
		api.DELETE("/discussions/:discussionId", h.DeleteDiscussion)

		// Course views
		api.GET("/discussions/course/:courseId", h.ListCourseDiscussions)
		api.GET("/discussions/course/:courseId/summary", h.CourseSummary)
		api.GET("/discussions/stats/:courseId", h.CourseStats)
	}
	return nil
}

// corsMiddleware builds the CORS chain. With no allowlist every origin is
// accepted; otherwise allowed origins are echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     allowMethods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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

// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, identity resolution, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Streams stay uncompressed and unbuffered; gzip applies to REST only
package httpapi

import (
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

	"github.com/kudoslab/go-kudos-backend/internal/config"
	"github.com/kudoslab/go-kudos-backend/internal/http/handlers"
	"github.com/kudoslab/go-kudos-backend/internal/http/middleware"
	"github.com/kudoslab/go-kudos-backend/internal/services"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), identity resolution, rate
// limiting, CORS and security headers, health and metrics endpoints, and the
// versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity (optional at this stage): resolve the anonymous caller
//  4. RedactingLogger: structured logs with identity scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Rate limiter (per identity/IP)
//  9. gzip for REST (streams excluded), CORS, security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, broker *stream.Broker, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Resolve the anonymous identity when presented; the API group below
	//    re-mounts this as required.
	r.Use(middleware.Identity(false))

	// 4) Structured logging with identity redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (64 KiB: payloads are names and short texts)
	r.Use(limitBody(64 << 10))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per identity/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) gzip for REST responses; SSE streams must not be compressed or
	//    buffered, so every /stream path is excluded.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`.*/stream(/.*)?$`, `.*/stream/.*`})))

	// CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Last-Event-ID", middleware.HeaderUserID, handlers.HeaderAdminToken},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in
		// addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Last-Event-ID", middleware.HeaderUserID, handlers.HeaderAdminToken},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
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

	// Swagger UI (behind a flag; never in production by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/broker
	profileSvc := services.NewProfileService(db, broker)
	groupSvc := services.NewGroupService(db, broker)
	complimentSvc := services.NewComplimentService(db, broker)

	h := handlers.New(profileSvc, groupSvc, complimentSvc)
	h.AdminToken = cfg.AdminToken
	if cfg.StreamKeepAlive > 0 {
		h.StreamKeepAlive = cfg.StreamKeepAlive
	}
	h.StreamMaxDuration = cfg.StreamMaxDuration

	// Public API: identity required on everything except group lookup, which
	// only needs an invite id.
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.GET("/groups/:id", h.GetGroup)

	auth := api.Group("", middleware.Identity(true))
	{
		// Profile
		auth.GET("/profile", h.GetProfile)
		auth.PUT("/profile", h.SaveProfile)
		auth.GET("/stream/profile", h.StreamProfile)

		// Groups
		auth.POST("/groups", h.CreateGroup)
		auth.POST("/groups/:id/join", h.JoinGroup)
		auth.GET("/groups/:id/members", h.ListMembers)
		auth.GET("/groups/:id/stream/meta", h.StreamGroupMeta)
		auth.GET("/groups/:id/stream/members", h.StreamRoster)

		// Compliments
		auth.POST("/groups/:id/compliments", h.SendCompliment)
		auth.GET("/groups/:id/compliments/received", h.ListReceived)
		auth.GET("/groups/:id/compliments/sent", h.ListSent)
		auth.GET("/groups/:id/stream/compliments/received", h.StreamReceived)
		auth.GET("/groups/:id/stream/compliments/sent", h.StreamSent)

		// Admin (token guarded in the handler; disabled when no token set)
		if cfg.AdminToken != "" {
			auth.DELETE("/groups/:id", h.DeleteGroup)
		}
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversize bodies error on read downstream.
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

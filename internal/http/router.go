// Package httpapi wires the Gin engine: cross-cutting middleware, the
// dashboard API, the Meta webhooks, the public webchat endpoints and the
// operational routes (/health, /metrics, /swagger, /media).
package httpapi

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/cache"
	"github.com/konsul-app/konsul-backend/internal/config"
	"github.com/konsul-app/konsul-backend/internal/http/docs"
	"github.com/konsul-app/konsul-backend/internal/http/handlers"
	"github.com/konsul-app/konsul-backend/internal/http/middleware"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/services"
)

// Deps are the long-lived collaborators built by the entrypoint.
type Deps struct {
	DB *gorm.DB
	// Keys caches channel lookups; nil disables caching.
	Keys    *cache.ChannelKeyCache
	Matcher *services.Matcher
	Ingest  handlers.IngestService
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. gzip
//  8. CORS and security headers
//
// Route groups add their own layers: the dashboard resolves the workspace and
// rate-limits per workspace; the webchat validates Idempotency-Key before a
// per-IP limiter so replays are not throttled. Webhooks are never limited.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/webhooks"})))

	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderWorkspaceID, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Locally stored attachments are served only when the public URL is a
	// path on this server.
	if strings.HasPrefix(cfg.Media.BaseURL, "/") && cfg.Media.Dir != "" {
		r.Static(cfg.Media.BaseURL, cfg.Media.Dir)
	}

	matcher := deps.Matcher
	if matcher == nil {
		matcher = services.NewMatcher()
	}
	h := handlers.New(handlers.Services{
		Agents:        services.NewAgentService(deps.DB),
		Intents:       services.NewIntentService(deps.DB, matcher),
		Channels:      services.NewChannelService(deps.DB, deps.Keys),
		Conversations: services.NewConversationService(deps.DB),
		Ingest:        deps.Ingest,
	}, handlers.WebhookOptions{
		VerifyToken: cfg.VerifyTokenFor,
		AppSecret:   cfg.Meta.AppSecret,
	})

	// Meta webhooks: signed by the provider, never rate limited.
	h.RegisterWebhooks(r.Group("/webhooks"))

	// Public webchat widget.
	webchat := r.Group(path.Join(basePath(cfg.APIBasePath), "webchat"),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, receiptLookup(deps.DB)),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).Handler(),
	)
	h.RegisterWebchat(webchat)

	// Dashboard API.
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Workspace(cfg.DefaultWorkspaceID),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByWorkspaceOrIP()).Handler(),
	)
	h.RegisterDashboard(api)
}

// receiptLookup reports a webchat Idempotency-Key as replayed once its reply
// has been recorded.
func receiptLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, channelID, key string, now time.Time) (bool, error) {
		rec, err := repo.GetReceipt(ctx, db, channelID, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return rec.ReplyMessageID != "", nil
	}
}

// limitBody caps request bodies at maxBytes. Reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func basePath(prefix string) string {
	if prefix == "" {
		return "/"
	}
	return prefix
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// Package httpapi wires the HTTP transport (Gin) to the handlers and
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, compression,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-telehealth-backend/docs"
	"github.com/tbourn/go-telehealth-backend/internal/config"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/http/handlers"
	"github.com/tbourn/go-telehealth-backend/internal/http/middleware"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// jsonBodyLimit caps every non-upload request body.
const jsonBodyLimit = 1 << 20

// Deps carries everything RegisterRoutes needs.
type Deps struct {
	Config   config.Config
	Handlers handlers.Deps

	// Tokens validates bearer tokens; required.
	Tokens middleware.TokenParser
	// Idempotency answers replay lookups for create-intent; nil disables
	// replay marking (keys are still validated and forwarded).
	Idempotency middleware.IdempotencyLookup

	// Registerer receives the HTTP collectors; Gatherer backs /metrics.
	// Both default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Compression (not for the socket, metrics or binary uploads)
//  7. CORS and security headers
//  8. Per-route: Auth → roles → idempotency → rate limiter
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	reg, gat := d.Registerer, d.Gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gat == nil {
		gat = prometheus.DefaultGatherer
	}

	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders:     []string{"Stripe-Signature"},
		MaskQueryParams: []string{"token"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.NewHTTPMetrics(reg).Handler("/ws"))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gat, promhttp.HandlerOpts{})))

	// 6) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/ws", "/metrics", "/uploads"}),
	))

	// 7) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:        cfg.Security.EnableHSTS,
		HSTSMaxAge:        cfg.Security.HSTSMaxAge,
		NoStore:           true,
		CacheablePrefixes: []string{"/uploads", "/swagger"},
		EnablePolicy:      true,
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
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Locally stored uploads, read-only
	if cfg.Upload.Dir != "" {
		r.Static("/uploads", cfg.Upload.Dir)
	}

	maxUpload := cfg.Upload.MaxBytes
	if maxUpload <= 0 {
		maxUpload = services.DefaultMaxUploadBytes
	}
	hd := d.Handlers
	if hd.MaxUploadBytes <= 0 {
		hd.MaxUploadBytes = maxUpload
	}
	h := handlers.New(hd)
	authed := middleware.Auth(d.Tokens, middleware.AuthOptions{})
	// Runs after Auth so buckets are per user; the processor webhook is
	// never limited.
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()

	// WebSocket (token may arrive as ?token=)
	if d.Handlers.Hub != nil && d.Handlers.Messages != nil {
		r.GET("/ws", middleware.Auth(d.Tokens, middleware.AuthOptions{AllowQueryToken: true}), h.Socket)
	}

	root := groupWithPrefix(r, cfg.APIBasePath)
	api := root.Group("", middleware.BodyLimit(jsonBodyLimit))

	if d.Handlers.Auth != nil {
		g := api.Group("/auth")
		g.POST("/register", limiter, h.Register)
		g.POST("/login", limiter, h.Login)
		g.GET("/me", authed, limiter, h.Me)
	}

	if d.Handlers.Appointments != nil {
		g := api.Group("/appointments", authed, limiter)
		g.POST("", h.CreateAppointment)
		g.GET("/my", h.MyAppointments)
		g.PUT("/reschedule/:id", h.RescheduleAppointment)
		g.POST("/cancel/:id", h.CancelAppointment)
		g.PATCH("/payment/:id", h.UpdateAppointmentPayment)
	}

	if d.Handlers.Doctors != nil {
		g := api.Group("/doctors")
		g.GET("", limiter, h.ListDoctors)
		g.GET("/:id", limiter, h.GetDoctor)
		g.POST("/profile", authed, middleware.RequireRoles(domain.RoleDoctor), limiter, h.CreateDoctorProfile)
		g.POST("/verify/:id", authed, middleware.RequireRoles(domain.RoleAdmin), limiter, h.VerifyDoctor)
		g.POST("/:id/ratings", authed, middleware.RequireRoles(domain.RolePatient), limiter, h.RateDoctor)
	}

	if d.Handlers.Reports != nil {
		// multipart framing needs headroom above the file cap
		root.POST("/reports/upload", middleware.BodyLimit(maxUpload+jsonBodyLimit), authed, limiter, h.UploadReport)

		g := api.Group("/reports", authed, limiter)
		g.GET("/my", h.MyReports)
		g.GET("/:id", h.GetReport)
	}

	if d.Handlers.Analysis != nil {
		api.POST("/analysis/report/:id", authed, limiter, h.AnalyzeReport)
	}

	if d.Handlers.Payments != nil {
		g := api.Group("/payments")
		g.POST("/webhook", h.PaymentWebhook)
		g.POST("/create-intent", authed,
			// before the limiter so replays bypass it
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{
				Scope:  services.ScopeCreateIntent,
				MaxLen: 200,
			}, d.Idempotency),
			limiter, h.CreateIntent)
		g.GET("/transactions", authed, limiter, h.ListTransactions)
	}

	if d.Handlers.Messages != nil {
		api.GET("/messages/conversation/:userId", authed, limiter, h.Conversation)
	}

	if d.Handlers.Seed != nil {
		api.POST("/dev/seed", limiter, h.Seed)
	}
}

// corsMiddleware returns the CORS stack. With no allowlist every origin is
// accepted (without credentials); otherwise allowed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization",
			"If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Content-Length",
			middleware.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header (health checks, curl)
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
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
		cors.New(base),
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

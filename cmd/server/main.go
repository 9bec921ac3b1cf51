// Command server runs the telehealth HTTP API.
//
//	@title						Telehealth Backend API
//	@version					1.0
//	@description				Accounts, appointments, doctor directory, medical reports with AI analysis, payments and realtime chat.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-telehealth-backend/internal/analysis"
	"github.com/tbourn/go-telehealth-backend/internal/auth"
	"github.com/tbourn/go-telehealth-backend/internal/config"
	httpapi "github.com/tbourn/go-telehealth-backend/internal/http"
	"github.com/tbourn/go-telehealth-backend/internal/http/handlers"
	"github.com/tbourn/go-telehealth-backend/internal/jobs"
	"github.com/tbourn/go-telehealth-backend/internal/notify"
	"github.com/tbourn/go-telehealth-backend/internal/observability"
	"github.com/tbourn/go-telehealth-backend/internal/payments"
	"github.com/tbourn/go-telehealth-backend/internal/realtime"
	"github.com/tbourn/go-telehealth-backend/internal/repo"
	"github.com/tbourn/go-telehealth-backend/internal/repo/mongostore"
	"github.com/tbourn/go-telehealth-backend/internal/retry"
	"github.com/tbourn/go-telehealth-backend/internal/services"
	"github.com/tbourn/go-telehealth-backend/internal/storage"
	"github.com/tbourn/go-telehealth-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envFile, envErr := sysutil.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("could not load .env; relying on environment variables")
	} else if envFile != "" {
		log.Info().Str("file", envFile).Msg("loaded environment file")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.BuildInfo{Version: version, Environment: cfg.Env})
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Relational store
	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.Instrument(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	mailer := newMailer(cfg.Email)

	messageStore, closeMessages := newMessageStore(ctx, cfg.DB, db)
	defer closeMessages()

	dedupe, closeRedis := newDeduper(ctx, cfg.Redis, db)
	defer closeRedis()

	store := newUploadStore(ctx, cfg.Upload)

	model, closeModel := newVisionModel(ctx, cfg.Analysis)
	defer closeModel()

	var processor services.IntentCreator
	if cfg.Stripe.SecretKey != "" {
		processor = payments.NewStripeClient(cfg.Stripe.SecretKey).WithBaseURL(cfg.Stripe.APIBase)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; payment intents are disabled")
	}

	hub := realtime.NewHub(realtime.ParseFanout(cfg.Chat.Fanout), cfg.Chat.SubscriberBuffer, realtime.NewMetrics(reg))
	defer hub.Close()

	paymentSvc := &services.PaymentService{
		DB:               db,
		Processor:        processor,
		Currency:         cfg.Stripe.Currency,
		WebhookSecret:    cfg.Stripe.WebhookSecret,
		WebhookTolerance: cfg.Stripe.WebhookTolerance,
		Dedupe:           dedupe,
		Mailer:           mailer,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          metrics,
	}

	hd := handlers.Deps{
		Auth:         &services.AuthService{DB: db, Tokens: tokens, BcryptCost: cfg.Auth.BcryptCost},
		Appointments: &services.AppointmentService{DB: db, Mailer: mailer},
		Doctors:      &services.DoctorService{DB: db},
		Reports:      &services.ReportService{DB: db, Store: store, MaxBytes: cfg.Upload.MaxBytes, Metrics: metrics},
		Payments:     paymentSvc,
		Messages:     &services.MessageService{Store: messageStore, Hub: hub, Users: db},
		Hub:          hub,
		Upgrader:     realtime.NewUpgrader(cfg.CORS.AllowedOrigins),
	}
	if model != nil {
		policy := services.DefaultAnalysisPolicy()
		if cfg.Analysis.MaxAttempts > 0 {
			policy = retry.Fixed(cfg.Analysis.MaxAttempts, cfg.Analysis.RetryDelay, retry.IsOverloaded)
		}
		hd.Analysis = &services.AnalysisService{
			DB:      db,
			Fetcher: analysis.NewFetcher(cfg.Analysis.FetchTimeout, cfg.Analysis.MaxDownloadBytes, cfg.Upload.Dir, "/uploads"),
			Rasterizer: analysis.NewRasterizer(cfg.Analysis.RasterizerBin, cfg.Analysis.RasterDPI,
				cfg.Analysis.RasterScaleTo, cfg.Analysis.RasterMinSize, cfg.Analysis.WorkDir),
			Model:   model,
			Policy:  policy,
			Metrics: metrics,
		}
	}
	// registered in every environment so production answers 403
	hd.Seed = &services.SeedService{DB: db, Tokens: tokens, BcryptCost: cfg.Auth.BcryptCost, Production: cfg.IsProduction()}

	// Maintenance jobs
	var sched *jobs.Scheduler
	if cfg.Jobs.SweepSchedule != "" {
		sweeper := jobs.NewSweeper(db, cfg.Analysis.WorkDir, cfg.Jobs.SweepMaxAge)
		if sched, err = jobs.NewScheduler(cfg.Jobs.SweepSchedule, sweeper); err != nil {
			log.Fatal().Err(err).Msg("schedule jobs")
		}
		sched.Start()
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Config:      cfg,
		Handlers:    hd,
		Tokens:      tokens,
		Idempotency: paymentSvc.HasReplay,
		Registerer:  reg,
		Gatherer:    reg,
	})

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
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Str("version", version).
			Bool("s3", cfg.Upload.S3.Bucket != "").
			Bool("analysis", model != nil).
			Bool("payments", processor != nil).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newMailer returns SendGrid when an API key is configured; otherwise mail
// is dropped.
func newMailer(cfg config.EmailConfig) notify.EmailSender {
	sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.From,
		FromName:  cfg.FromName,
	})
	if sg == nil {
		log.Info().Msg("SENDGRID_API_KEY not set; email notifications disabled")
		return notify.NopSender{}
	}
	return sg
}

// newMessageStore keeps chat in Mongo when MONGO_URI is set and in the
// relational store otherwise.
func newMessageStore(ctx context.Context, cfg config.DBConfig, db *gorm.DB) (services.MessageStore, func()) {
	if cfg.MongoURI == "" {
		return repo.NewMessageStore(db), func() {}
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongostore.Connect(connectCtx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongo")
	}
	ms := mongostore.New(client.Database(cfg.MongoDatabase).Collection("chat_messages"))
	if err := ms.EnsureIndexes(connectCtx); err != nil {
		log.Warn().Err(err).Msg("mongo index creation failed")
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("chat messages stored in mongo")
	return ms, func() { _ = client.Disconnect(context.Background()) }
}

// newDeduper claims webhook event ids in Redis when REDIS_ADDR is set, else
// in the webhook_events table.
func newDeduper(ctx context.Context, cfg config.RedisConfig, db *gorm.DB) (payments.Deduper, func()) {
	if cfg.Addr == "" {
		return payments.SQLDeduper{DB: db}, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable; webhook dedupe falls back to SQL")
		_ = client.Close()
		return payments.SQLDeduper{DB: db}, func() {}
	}
	return payments.NewRedisDeduper(client, cfg.DedupeTTL), func() { _ = client.Close() }
}

// newUploadStore writes to S3 when a bucket is configured, falling back to
// the local uploads directory.
func newUploadStore(ctx context.Context, cfg config.UploadConfig) storage.Store {
	local := storage.NewLocalStore(cfg.Dir, "/uploads")
	if cfg.S3.Bucket == "" {
		return storage.Fallback{Secondary: local}
	}
	client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		log.Warn().Err(err).Msg("s3 client unavailable; uploads stay local")
		return storage.Fallback{Secondary: local}
	}
	return storage.Fallback{Primary: storage.NewS3Store(client, cfg.S3), Secondary: local}
}

// newVisionModel returns nil when no Gemini key is configured, which leaves
// the analysis route unregistered.
func newVisionModel(ctx context.Context, cfg config.AnalysisConfig) (analysis.VisionModel, func()) {
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set; report analysis is disabled")
		return nil, func() {}
	}
	g, err := analysis.NewGeminiVision(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini client")
	}
	return g, func() { _ = g.Close() }
}

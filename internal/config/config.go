// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP server, logging, persistence, authentication, uploads and object
// storage, report analysis, payments, messaging, background jobs, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "telehealth-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and configures the relational store.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN

	MongoURI      string // optional document store for chat messages
	MongoDatabase string
}

// AuthConfig configures bearer tokens and password hashing.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// S3Config configures the object store used for report uploads. An empty
// Bucket disables S3 and every upload goes to the local fallback.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint (MinIO, LocalStack)
	PublicBaseURL   string // base for public object URLs; derived when empty
	Prefix          string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// UploadConfig configures report uploads.
type UploadConfig struct {
	Dir      string // local fallback root, served under /uploads
	MaxBytes int64
	S3       S3Config
}

// AnalysisConfig configures the report analysis pipeline.
type AnalysisConfig struct {
	GeminiAPIKey     string
	Model            string
	MaxAttempts      int
	RetryDelay       time.Duration
	FetchTimeout     time.Duration
	MaxDownloadBytes int64

	RasterizerBin string
	RasterDPI     int
	RasterScaleTo int
	RasterMinSize int64
	WorkDir       string
}

// StripeConfig configures the payment processor.
type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	APIBase          string
	Currency         string
	WebhookTolerance time.Duration
}

// RedisConfig configures the optional Redis client.
type RedisConfig struct {
	Addr      string
	Password  string
	DedupeTTL time.Duration
}

// EmailConfig configures outbound email.
type EmailConfig struct {
	SendGridAPIKey string
	From           string
	FromName       string
}

// ChatConfig configures the realtime hub.
type ChatConfig struct {
	Fanout           string // broadcast|direct
	SubscriberBuffer int
}

// JobsConfig configures the maintenance scheduler.
type JobsConfig struct {
	SweepSchedule string // cron spec
	SweepMaxAge   time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s (analysis can be slow)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	Env               string        // development|production|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB       DBConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Analysis AnalysisConfig
	Stripe   StripeConfig
	Redis    RedisConfig
	Email    EmailConfig
	Chat     ChatConfig
	Jobs     JobsConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "5000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		Env:               strings.ToLower(getenv("APP_ENV", "development")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		DB: DBConfig{
			Driver:        strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:          getenv("DB_PATH", "telehealth.db"),
			URL:           getenv("DATABASE_URL", ""),
			MongoURI:      getenv("MONGO_URI", ""),
			MongoDatabase: getenv("MONGO_DATABASE", "telehealth"),
		},
		Auth: AuthConfig{
			JWTSecret:  getenv("JWT_SECRET", ""),
			TokenTTL:   getdur("JWT_TTL", 7*24*time.Hour),
			BcryptCost: getint("BCRYPT_COST", 10),
		},
		Upload: UploadConfig{
			Dir:      getenv("UPLOAD_DIR", "uploads"),
			MaxBytes: int64(getint("UPLOAD_MAX_BYTES", 10<<20)),
			S3: S3Config{
				Bucket:          getenv("S3_BUCKET", ""),
				Region:          getenv("S3_REGION", getenv("AWS_REGION", "us-east-1")),
				Endpoint:        getenv("S3_ENDPOINT", ""),
				PublicBaseURL:   strings.TrimRight(getenv("S3_PUBLIC_BASE_URL", ""), "/"),
				Prefix:          strings.Trim(getenv("S3_PREFIX", ""), "/"),
				ForcePathStyle:  getbool("S3_FORCE_PATH_STYLE", false),
				AccessKeyID:     getenv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		Analysis: AnalysisConfig{
			GeminiAPIKey:     getenv("GEMINI_API_KEY", ""),
			Model:            getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			MaxAttempts:      getint("ANALYSIS_MAX_ATTEMPTS", 3),
			RetryDelay:       getdur("ANALYSIS_RETRY_DELAY", 1500*time.Millisecond),
			FetchTimeout:     getdur("ANALYSIS_FETCH_TIMEOUT", 30*time.Second),
			MaxDownloadBytes: int64(getint("ANALYSIS_MAX_DOWNLOAD_BYTES", 25<<20)),
			RasterizerBin:    getenv("RASTERIZER_BIN", "pdftoppm"),
			RasterDPI:        getint("RASTER_DPI", 150),
			RasterScaleTo:    getint("RASTER_SCALE_TO", 1600),
			RasterMinSize:    int64(getint("RASTER_MIN_BYTES", 512)),
			WorkDir:          getenv("ANALYSIS_WORK_DIR", os.TempDir()),
		},
		Stripe: StripeConfig{
			SecretKey:        getenv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:    getenv("STRIPE_WEBHOOK_SECRET", ""),
			APIBase:          strings.TrimRight(getenv("STRIPE_API_BASE", "https://api.stripe.com"), "/"),
			Currency:         strings.ToLower(getenv("STRIPE_CURRENCY", "usd")),
			WebhookTolerance: getdur("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getenv("REDIS_ADDR", ""),
			Password:  getenv("REDIS_PASSWORD", ""),
			DedupeTTL: getdur("WEBHOOK_DEDUPE_TTL", 72*time.Hour),
		},
		Email: EmailConfig{
			SendGridAPIKey: getenv("SENDGRID_API_KEY", ""),
			From:           getenv("EMAIL_FROM", ""),
			FromName:       getenv("EMAIL_FROM_NAME", "CureLink"),
		},
		Chat: ChatConfig{
			Fanout:           strings.ToLower(getenv("CHAT_FANOUT", "broadcast")),
			SubscriberBuffer: getint("CHAT_SUBSCRIBER_BUFFER", 32),
		},
		Jobs: JobsConfig{
			SweepSchedule: getenv("SWEEP_SCHEDULE", "@every 15m"),
			SweepMaxAge:   getdur("SWEEP_MAX_AGE", time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "telehealth-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.Env {
	case "development", "production", "test":
	case "dev":
		cfg.Env = "development"
	case "prod":
		cfg.Env = "production"
	default:
		cfg.Env = "development"
	}
	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = "dev-secret-change-me"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Auth.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required in production")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return cfg, errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if strings.TrimSpace(cfg.Upload.Dir) == "" {
		return cfg, errors.New("UPLOAD_DIR must not be empty")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return cfg, errors.New("UPLOAD_MAX_BYTES must be > 0")
	}
	if cfg.Analysis.MaxAttempts < 1 {
		return cfg, errors.New("ANALYSIS_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Analysis.RetryDelay < 0 {
		return cfg, errors.New("ANALYSIS_RETRY_DELAY must be >= 0")
	}
	if cfg.Analysis.FetchTimeout <= 0 {
		return cfg, errors.New("ANALYSIS_FETCH_TIMEOUT must be > 0")
	}
	if cfg.Analysis.RasterDPI <= 0 || cfg.Analysis.RasterScaleTo <= 0 {
		return cfg, errors.New("RASTER_DPI and RASTER_SCALE_TO must be > 0")
	}
	if cfg.Stripe.WebhookTolerance <= 0 {
		return cfg, errors.New("STRIPE_WEBHOOK_TOLERANCE must be > 0")
	}
	switch cfg.Chat.Fanout {
	case "broadcast", "direct":
	default:
		return cfg, errors.New("CHAT_FANOUT must be one of: broadcast, direct")
	}
	if cfg.Chat.SubscriberBuffer < 1 {
		return cfg, errors.New("CHAT_SUBSCRIBER_BUFFER must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

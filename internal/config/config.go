// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, persistence, provider credentials, media handling and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and locates the relational store.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file (sqlite driver)
	URL    string // DSN (postgres driver)
}

// MetaConfig holds the Meta platform settings shared by the WhatsApp,
// Instagram and Messenger webhooks. Per-provider verify tokens fall back to
// VerifyToken when unset.
type MetaConfig struct {
	GraphBaseURL   string
	AppSecret      string
	VerifyToken    string
	WhatsAppToken  string
	InstagramToken string
	MessengerToken string

	// Access tokens used when a channel's config carries none.
	WhatsAppAccessToken string
	PageAccessToken     string // Messenger and Instagram
}

// OpenAIConfig configures the LLM reply generator. An empty APIKey disables it.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// MediaConfig configures inbound media transcoding and storage.
type MediaConfig struct {
	Dir          string
	BaseURL      string
	MaxWidth     int
	Quality      int
	MaxFileBytes int64
	// MaxPixels caps width*height of inbound images before decoding.
	MaxPixels int64
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s (webhooks call out synchronously)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Persistence
	DB       DBConfig
	RedisURL string // empty disables the channel-key cache

	// Tenancy
	DefaultWorkspaceID string // used when X-Workspace-ID is absent

	// Intent pipeline
	IntentWebhookTimeout time.Duration
	ProviderHTTPTimeout  time.Duration
	ReceiptTTL           time.Duration
	ReplyHistoryLimit    int
	ChannelCacheTTL      time.Duration

	// Providers
	Meta   MetaConfig
	OpenAI OpenAIConfig
	Media  MediaConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a webchat Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

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
	verify := getenv("META_VERIFY_TOKEN", "")
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Persistence
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "konsul.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		RedisURL: getenv("REDIS_URL", ""),

		DefaultWorkspaceID: getenv("DEFAULT_WORKSPACE_ID", "00000000-0000-0000-0000-000000000001"),

		// Intent pipeline
		IntentWebhookTimeout: getdur("INTENT_WEBHOOK_TIMEOUT", 10*time.Second),
		ProviderHTTPTimeout:  getdur("PROVIDER_HTTP_TIMEOUT", 30*time.Second),
		ReceiptTTL:           getdur("RECEIPT_TTL", 72*time.Hour),
		ReplyHistoryLimit:    getint("REPLY_HISTORY_LIMIT", 20),
		ChannelCacheTTL:      getdur("CHANNEL_CACHE_TTL", 5*time.Minute),

		// Providers
		Meta: MetaConfig{
			GraphBaseURL:   strings.TrimRight(getenv("META_GRAPH_BASE_URL", "https://graph.facebook.com/v21.0"), "/"),
			AppSecret:      getenv("META_APP_SECRET", ""),
			VerifyToken:    verify,
			WhatsAppToken:  getenv("WHATSAPP_VERIFY_TOKEN", verify),
			InstagramToken: getenv("INSTAGRAM_VERIFY_TOKEN", verify),
			MessengerToken: getenv("MESSENGER_VERIFY_TOKEN", verify),

			WhatsAppAccessToken: getenv("WHATSAPP_ACCESS_TOKEN", ""),
			PageAccessToken:     getenv("META_PAGE_ACCESS_TOKEN", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey: getenv("OPENAI_API_KEY", ""),
			Model:  getenv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Media: MediaConfig{
			Dir:          getenv("MEDIA_DIR", "media"),
			BaseURL:      strings.TrimRight(getenv("MEDIA_BASE_URL", "/media"), "/"),
			MaxWidth:     getint("IMAGE_MAX_WIDTH", 1024),
			Quality:      getint("IMAGE_QUALITY", 80),
			MaxFileBytes: int64(getint("MEDIA_MAX_BYTES", 16<<20)),
			MaxPixels:    int64(getint("IMAGE_MAX_PIXELS", 40_000_000)),
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

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "konsul-backend"),
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
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
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
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
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
	if cfg.IntentWebhookTimeout <= 0 || cfg.ProviderHTTPTimeout <= 0 {
		return cfg, errors.New("INTENT_WEBHOOK_TIMEOUT and PROVIDER_HTTP_TIMEOUT must be > 0")
	}
	if cfg.ReceiptTTL <= 0 {
		return cfg, errors.New("RECEIPT_TTL must be > 0")
	}
	if cfg.ReplyHistoryLimit < 0 {
		return cfg, errors.New("REPLY_HISTORY_LIMIT must be >= 0")
	}
	if cfg.ChannelCacheTTL < 0 {
		return cfg, errors.New("CHANNEL_CACHE_TTL must be >= 0")
	}
	if cfg.Media.MaxWidth < 1 {
		return cfg, errors.New("IMAGE_MAX_WIDTH must be >= 1")
	}
	if cfg.Media.Quality < 1 || cfg.Media.Quality > 100 {
		return cfg, errors.New("IMAGE_QUALITY must be between 1 and 100")
	}
	if cfg.Media.MaxPixels < 1 {
		return cfg, errors.New("IMAGE_MAX_PIXELS must be >= 1")
	}
	if strings.TrimSpace(cfg.Media.Dir) == "" {
		return cfg, errors.New("MEDIA_DIR must not be empty")
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

// VerifyTokenFor returns the webhook verify token configured for a provider
// ("whatsapp", "instagram", "messenger").
func (c Config) VerifyTokenFor(provider string) string {
	switch strings.ToLower(provider) {
	case "whatsapp":
		return c.Meta.WhatsAppToken
	case "instagram":
		return c.Meta.InstagramToken
	case "messenger":
		return c.Meta.MessengerToken
	}
	return c.Meta.VerifyToken
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

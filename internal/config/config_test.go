package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("GIN_MODE", "weird") // normalizes to "release"
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v1/")

	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/konsul")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	t.Setenv("INTENT_WEBHOOK_TIMEOUT", "5s")
	t.Setenv("RECEIPT_TTL", "1h")
	t.Setenv("REPLY_HISTORY_LIMIT", "nope") // falls back to 20

	t.Setenv("META_GRAPH_BASE_URL", "http://graph.local/v1/")
	t.Setenv("META_VERIFY_TOKEN", "shared")
	t.Setenv("MESSENGER_VERIFY_TOKEN", "fb-only")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "wa-token")
	t.Setenv("IMAGE_MAX_WIDTH", "640")
	t.Setenv("IMAGE_MAX_PIXELS", "1000000")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.WriteTimeout != 3*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.URL == "" || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("persistence unexpected: %+v", cfg.DB)
	}
	if cfg.IntentWebhookTimeout != 5*time.Second || cfg.ReceiptTTL != time.Hour || cfg.ReplyHistoryLimit != 20 {
		t.Fatalf("pipeline unexpected: %+v", cfg)
	}
	if cfg.Meta.GraphBaseURL != "http://graph.local/v1" {
		t.Fatalf("graph base url not trimmed: %q", cfg.Meta.GraphBaseURL)
	}
	if cfg.VerifyTokenFor("whatsapp") != "shared" || cfg.VerifyTokenFor("Messenger") != "fb-only" || cfg.VerifyTokenFor("instagram") != "shared" {
		t.Fatalf("verify tokens unexpected: %+v", cfg.Meta)
	}
	if cfg.Meta.WhatsAppAccessToken != "wa-token" || cfg.Meta.PageAccessToken != "" {
		t.Fatalf("access tokens unexpected: %+v", cfg.Meta)
	}
	if cfg.Media.MaxWidth != 640 || cfg.Media.Quality != 80 || cfg.Media.MaxPixels != 1_000_000 {
		t.Fatalf("media unexpected: %+v", cfg.Media)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.OTEL.SampleRatio != 0.75 || cfg.OTEL.ServiceName != "konsul-backend" {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty PORT", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"max body bytes", "MAX_BODY_BYTES", "-1", "MAX_BODY_BYTES"},
		{"empty DB_PATH", "DB_PATH", "   ", "DB_PATH must not be empty"},
		{"unknown driver", "DB_DRIVER", "mysql", "DB_DRIVER"},
		{"webhook timeout", "INTENT_WEBHOOK_TIMEOUT", "0s", "INTENT_WEBHOOK_TIMEOUT"},
		{"receipt ttl", "RECEIPT_TTL", "0s", "RECEIPT_TTL"},
		{"history limit", "REPLY_HISTORY_LIMIT", "-3", "REPLY_HISTORY_LIMIT"},
		{"image width", "IMAGE_MAX_WIDTH", "0", "IMAGE_MAX_WIDTH"},
		{"image quality", "IMAGE_QUALITY", "101", "IMAGE_QUALITY"},
		{"image pixels", "IMAGE_MAX_PIXELS", "0", "IMAGE_MAX_PIXELS"},
		{"rate rps", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"idempotency ttl", "IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"otel ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}

	t.Run("postgres without DATABASE_URL", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DATABASE_URL", "")
		if _, err := Load(); err == nil || !containsErr(err, "DATABASE_URL") {
			t.Fatalf("expected DATABASE_URL validation error, got: %v", err)
		}
	})
}

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		k := "B_T_" + string(rune('a'+i))
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for i, v := range []string{"0", "false", " no ", "N", "off"} {
		k := "B_F_" + string(rune('a'+i))
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.DB.Driver != "sqlite" || cfg.IntentWebhookTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DATABASE_URL", "META_VERIFY_TOKEN", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/config"
	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/http/middleware"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/services"
)

const defaultWorkspace = "00000000-0000-0000-0000-000000000001"

type fakeIngest struct{ webhooks int }

func (f *fakeIngest) HandleWebhook(context.Context, domain.ChannelType, []byte) (services.WebhookReport, error) {
	f.webhooks++
	return services.WebhookReport{}, nil
}

func (f *fakeIngest) HandleWebchat(_ context.Context, channelID string, _ channels.WebchatMessage, _ string) (*services.Outcome, error) {
	return &services.Outcome{ChannelID: channelID}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:        "/api/v1",
		MaxBodyBytes:       1 << 20,
		DefaultWorkspaceID: defaultWorkspace,
		RateRPS:            100,
		RateBurst:          10,
		OTEL:               config.OTELConfig{ServiceName: "test-svc"},
		Meta:               config.MetaConfig{VerifyToken: "verify-me", WhatsAppToken: "verify-me"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *fakeIngest) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ingest := &fakeIngest{}
	RegisterRoutes(r, Deps{DB: newTestDB(t), Ingest: ingest}, cfg)
	return r, ingest
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsAndFallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("request id or security headers missing: %v", w.Header())
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = serve(r, httptest.NewRequest(http.MethodPost, "/health", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w = serve(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newRouter(t, cfg)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("/agents/{agentId}/intents")) {
		t.Fatalf("GET /swagger/doc.json = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := serve(r, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_DashboardUsesWorkspace(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", bytes.NewBufferString(`{"name":"Luna"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	if w.Code != http.StatusCreated || !bytes.Contains(w.Body.Bytes(), []byte(defaultWorkspace)) {
		t.Fatalf("create agent = %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/agents/"+uuid.NewString(), nil)
	req.Header.Set(middleware.HeaderWorkspaceID, "not-a-uuid")
	if w = serve(r, req); w.Code != http.StatusBadRequest {
		t.Fatalf("bad workspace header = %d", w.Code)
	}
}

func TestRegisterRoutes_WebhooksAreNotRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r, ingest := newRouter(t, cfg)

	for i := 0; i < 5; i++ {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewBufferString(`{}`)))
		if w.Code != http.StatusOK {
			t.Fatalf("webhook #%d = %d %s", i, w.Code, w.Body.String())
		}
	}
	if ingest.webhooks != 5 {
		t.Fatalf("expected 5 deliveries, got %d", ingest.webhooks)
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil))
	if w.Code != http.StatusOK || w.Body.String() != "42" {
		t.Fatalf("verify = %d %q", w.Code, w.Body.String())
	}

	// the dashboard shares the tight limit
	codes := map[int]int{}
	for i := 0; i < 3; i++ {
		codes[serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/agents/"+uuid.NewString(), nil)).Code]++
	}
	if codes[http.StatusTooManyRequests] == 0 {
		t.Fatalf("dashboard should be rate limited: %v", codes)
	}
}

func TestRegisterRoutes_WebchatReplayBypassesRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Ingest: &fakeIngest{}}, cfg)

	channelID := uuid.NewString()
	rec, err := repo.ClaimReceipt(context.Background(), db, channelID, "k-1", time.Hour)
	if err != nil {
		t.Fatalf("ClaimReceipt: %v", err)
	}
	if err := repo.CompleteReceipt(context.Background(), db, rec.ID, "m-1", "m-2"); err != nil {
		t.Fatalf("CompleteReceipt: %v", err)
	}

	post := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webchat/"+channelID+"/messages",
			bytes.NewBufferString(`{"visitorId":"v-1","content":"hola"}`))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(middleware.HeaderIdempotencyKey, key)
		}
		return serve(r, req).Code
	}

	if code := post(""); code != http.StatusCreated {
		t.Fatalf("first post = %d", code)
	}
	if code := post(""); code != http.StatusTooManyRequests {
		t.Fatalf("second post should be limited, got %d", code)
	}
	for i := 0; i < 3; i++ {
		if code := post("k-1"); code == http.StatusTooManyRequests {
			t.Fatalf("replayed keys must bypass the limiter")
		}
	}
}

func TestRegisterRoutes_ServesMedia(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foto.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := testConfig()
	cfg.Media = config.MediaConfig{Dir: dir, BaseURL: "/media"}
	r, _ := newRouter(t, cfg)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/media/foto.jpg", nil))
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Fatalf("GET /media/foto.jpg = %d %q", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
	if w = serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("short"))); w.Code != http.StatusOK {
		t.Fatalf("small body = %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/one", nil)); w.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", w.Code, w.Body.String())
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/ping", nil)); w.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", w.Code, w.Body.String())
	}
	if basePath("") != "/" || basePath("/api/v2") != "/api/v2" {
		t.Fatalf("basePath mismatch")
	}
}

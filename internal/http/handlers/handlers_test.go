package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/http/middleware"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/services"
)

const (
	testWorkspace  = "11111111-1111-1111-1111-111111111111"
	otherWorkspace = "22222222-2222-2222-2222-222222222222"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// stubIngest records calls and returns canned results.
type stubIngest struct {
	webhook  func(context.Context, domain.ChannelType, []byte) (services.WebhookReport, error)
	webchat  func(context.Context, string, channels.WebchatMessage, string) (*services.Outcome, error)
	lastType domain.ChannelType
	lastKey  string
}

func (s *stubIngest) HandleWebhook(ctx context.Context, t domain.ChannelType, body []byte) (services.WebhookReport, error) {
	s.lastType = t
	if s.webhook != nil {
		return s.webhook(ctx, t, body)
	}
	return services.WebhookReport{}, nil
}

func (s *stubIngest) HandleWebchat(ctx context.Context, channelID string, msg channels.WebchatMessage, key string) (*services.Outcome, error) {
	s.lastKey = key
	if s.webchat != nil {
		return s.webchat(ctx, channelID, msg, key)
	}
	return &services.Outcome{ChannelID: channelID}, nil
}

type apiFixture struct {
	db     *gorm.DB
	router *gin.Engine
	ingest *stubIngest
	agent  *domain.Agent
}

// newAPI wires real services over a private database and mounts every route
// the way the server does, minus rate limiting and tracing.
func newAPI(t *testing.T, opts WebhookOptions) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)

	agents := services.NewAgentService(db)
	agent, err := agents.Create(context.Background(), testWorkspace, services.AgentInput{Name: "Luna"})
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	f := &apiFixture{db: db, ingest: &stubIngest{}, agent: agent}
	h := New(Services{
		Agents:        agents,
		Intents:       services.NewIntentService(db, nil),
		Channels:      services.NewChannelService(db, nil),
		Conversations: services.NewConversationService(db),
		Ingest:        f.ingest,
	}, opts)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.Workspace(testWorkspace))
	h.RegisterDashboard(api)
	h.RegisterWebchat(r.Group("/api/v1/webchat", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil)))
	h.RegisterWebhooks(r.Group("/webhooks"))
	f.router = r
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, status, w.Body.String())
	}
	if e := decode[ErrorResponse](t, w); e.Code != code {
		t.Fatalf("code = %q, want %q", e.Code, code)
	}
}

func (f *apiFixture) agentPath(suffix string) string {
	return "/api/v1/agents/" + f.agent.ID + suffix
}

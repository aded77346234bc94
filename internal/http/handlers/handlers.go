package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/http/middleware"
	"github.com/konsul-app/konsul-backend/internal/services"
	"github.com/konsul-app/konsul-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AgentService creates and loads agents within a workspace.
type AgentService interface {
	Create(ctx context.Context, workspaceID string, in services.AgentInput) (*domain.Agent, error)
	Get(ctx context.Context, workspaceID, agentID string) (*domain.Agent, error)
}

// IntentService manages an agent's intents.
type IntentService interface {
	Create(ctx context.Context, workspaceID, agentID string, in services.IntentInput) (*domain.Intent, error)
	List(ctx context.Context, workspaceID, agentID string) ([]domain.Intent, error)
	Get(ctx context.Context, workspaceID, agentID, intentID string) (*domain.Intent, error)
	Update(ctx context.Context, workspaceID, agentID, intentID string, in services.IntentInput) (*domain.Intent, error)
	Toggle(ctx context.Context, workspaceID, agentID, intentID string) (*domain.Intent, error)
	Delete(ctx context.Context, workspaceID, agentID, intentID string) error
	// Detect is a dry run: it returns the intent that would fire, or nil.
	Detect(ctx context.Context, workspaceID, agentID, message string) (*domain.Intent, error)
	Runs(ctx context.Context, workspaceID, agentID, intentID string, limit int) ([]domain.IntentRun, error)
}

// ChannelService manages an agent's channels.
type ChannelService interface {
	Create(ctx context.Context, workspaceID, agentID string, in services.ChannelInput) (*domain.Channel, error)
	List(ctx context.Context, workspaceID, agentID string) ([]domain.Channel, error)
	Update(ctx context.Context, workspaceID, agentID, channelID string, in services.ChannelInput) (*domain.Channel, error)
}

// ConversationService exposes conversations and their history.
type ConversationService interface {
	ListPage(ctx context.Context, workspaceID, agentID, status string, page, pageSize int) ([]domain.Conversation, int64, error)
	MessagesETag(ctx context.Context, workspaceID, id string, page, pageSize int) (string, error)
	Messages(ctx context.Context, workspaceID, id string, page, pageSize int) ([]domain.Message, int64, error)
	VisitorMessages(ctx context.Context, channelID, visitorID string, page, pageSize int) ([]domain.Message, int64, error)
	SetStatus(ctx context.Context, workspaceID, id, status string, assignee *string) (*domain.Conversation, error)
}

// IngestService runs the inbound pipeline for webhooks and the webchat.
type IngestService interface {
	HandleWebhook(ctx context.Context, t domain.ChannelType, body []byte) (services.WebhookReport, error)
	HandleWebchat(ctx context.Context, channelID string, msg channels.WebchatMessage, idempotencyKey string) (*services.Outcome, error)
}

// WebhookOptions configures the Meta webhook endpoints.
type WebhookOptions struct {
	// VerifyToken returns the subscription token for a provider
	// ("whatsapp", "instagram", "messenger").
	VerifyToken func(provider string) string
	// AppSecret enables X-Hub-Signature-256 checks when set.
	AppSecret string
}

//
// Handler wiring
//

// Handlers groups every endpoint. Nil services are allowed in tests that
// only exercise a subset of routes.
type Handlers struct {
	agents        AgentService
	intents       IntentService
	channels      ChannelService
	conversations ConversationService
	ingest        IngestService
	webhook       WebhookOptions
}

// Services bundles the dependencies of New.
type Services struct {
	Agents        AgentService
	Intents       IntentService
	Channels      ChannelService
	Conversations ConversationService
	Ingest        IngestService
}

// New constructs Handlers bound to the given services.
func New(svc Services, webhook WebhookOptions) *Handlers {
	return &Handlers{
		agents:        svc.Agents,
		intents:       svc.Intents,
		channels:      svc.Channels,
		conversations: svc.Conversations,
		ingest:        svc.Ingest,
		webhook:       webhook,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size from the query.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize),
	)
}

// workspaceID returns the tenant resolved by middleware.Workspace.
func workspaceID(c *gin.Context) string {
	return middleware.WorkspaceFrom(c)
}

// uuidParam reads a UUID path parameter, failing with 400 otherwise.
func uuidParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if _, err := uuid.Parse(v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a UUID")
		return "", false
	}
	return v, true
}

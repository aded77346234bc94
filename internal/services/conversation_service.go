// Package services – ConversationService
//
// This file implements ConversationService: paged conversation listings per
// agent, message history with ETags for conditional GETs, visitor history
// for the webchat widget and status transitions (BOT, OPEN, CLOSED) with an
// optional assignee.
//
// Observability: list and history methods open OpenTelemetry spans carrying
// identifiers and paging parameters.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/utils"
)

// ConversationService exposes conversation listings, message history and
// status transitions to the dashboard.
type ConversationService struct {
	DB *gorm.DB
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{DB: db}
}

// ListPage returns a page of the agent's conversations, most recent activity
// first. status may be empty to include every status.
func (s *ConversationService) ListPage(ctx context.Context, workspaceID, agentID, status string, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := loadAgent(ctx, s.DB, workspaceID, agentID); err != nil {
		return nil, 0, err
	}
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize = utils.ClampPage(page, pageSize)

	total, err := repo.CountConversations(ctx, s.DB, agentID, st)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := repo.ListConversationsPage(ctx, s.DB, agentID, st, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get loads a conversation inside the workspace.
func (s *ConversationService) Get(ctx context.Context, workspaceID, id string) (*domain.Conversation, error) {
	c, err := repo.GetConversationInWorkspace(ctx, s.DB, workspaceID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	return c, err
}

// MessagesETag returns a weak validator for one page of the history. It
// changes whenever a message is added to the conversation.
func (s *ConversationService) MessagesETag(ctx context.Context, workspaceID, id string, page, pageSize int) (string, error) {
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return "", err
	}
	count, maxTS, err := repo.MessagesStats(ctx, s.DB, id)
	if err != nil {
		return "", err
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	page, pageSize = utils.ClampPage(page, pageSize)
	return fmt.Sprintf(`W/"messages:%s:%d:%d:%d.%d"`, id, count, ts, page, pageSize), nil
}

// Messages returns a page of the conversation's messages, oldest first.
func (s *ConversationService) Messages(ctx context.Context, workspaceID, id string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Messages",
		trace.WithAttributes(
			attribute.String("conversation.id", id),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return nil, 0, err
	}
	return s.messagesPage(ctx, id, page, pageSize)
}

// VisitorMessages returns the webchat history of one visitor on a channel.
// A visitor that never wrote gets an empty page.
func (s *ConversationService) VisitorMessages(ctx context.Context, channelID, visitorID string, page, pageSize int) ([]domain.Message, int64, error) {
	ch, err := repo.GetChannel(ctx, s.DB, channelID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && (ch.Type != domain.ChannelWebchat || !ch.IsActive)) {
		return nil, 0, ErrChannelNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	conv, err := repo.FindConversation(ctx, s.DB, channelID, strings.TrimSpace(visitorID))
	if errors.Is(err, repo.ErrNotFound) {
		return []domain.Message{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return s.messagesPage(ctx, conv.ID, page, pageSize)
}

func (s *ConversationService) messagesPage(ctx context.Context, convID string, page, pageSize int) ([]domain.Message, int64, error) {
	page, pageSize = utils.ClampPage(page, pageSize)
	total, err := repo.CountMessages(ctx, s.DB, convID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, convID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// SetStatus moves a conversation to status. A non-nil assignee is stored
// alongside (an empty string clears it).
func (s *ConversationService) SetStatus(ctx context.Context, workspaceID, id, status string, assignee *string) (*domain.Conversation, error) {
	st := domain.ConversationStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return nil, err
	}
	if assignee != nil {
		a := strings.TrimSpace(*assignee)
		assignee = &a
	}
	if err := repo.UpdateConversationStatus(ctx, s.DB, id, st, assignee); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return s.Get(ctx, workspaceID, id)
}

func parseStatusFilter(status string) (domain.ConversationStatus, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return "", nil
	}
	st := domain.ConversationStatus(strings.ToUpper(status))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}


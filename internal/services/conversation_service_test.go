package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

func addMessage(t *testing.T, svc *ConversationService, convID string, role domain.Role, text string) {
	t.Helper()
	if err := repo.CreateMessage(context.Background(), svc.DB, &domain.Message{ConversationID: convID, Role: role, Content: text}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
}

func TestConversationService_ListPageAndStatusFilter(t *testing.T) {
	db := newTestDB(t)
	agent := seedAgent(t, db)
	ch := seedChannel(t, db, agent.ID, domain.ChannelWebchat, domain.ChannelConfig{})
	svc := NewConversationService(db)
	ctx := context.Background()

	a := seedConversation(t, db, ch, "v-1")
	seedConversation(t, db, ch, "v-2")
	seedConversation(t, db, ch, "v-3")

	items, total, err := svc.ListPage(ctx, testWorkspace, agent.ID, "", 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("ListPage = %d/%d, %v", len(items), total, err)
	}

	if _, err := svc.SetStatus(ctx, testWorkspace, a.ID, "open", nil); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	items, total, err = svc.ListPage(ctx, testWorkspace, agent.ID, "OPEN", 1, 20)
	if err != nil || total != 1 || items[0].ID != a.ID {
		t.Fatalf("status filter = %+v (%d), %v", items, total, err)
	}
	if _, _, err := svc.ListPage(ctx, testWorkspace, agent.ID, "ARCHIVED", 1, 20); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, _, err := svc.ListPage(ctx, testWorkspace, "missing", "", 1, 20); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestConversationService_MessagesAndETag(t *testing.T) {
	db := newTestDB(t)
	agent := seedAgent(t, db)
	ch := seedChannel(t, db, agent.ID, domain.ChannelWebchat, domain.ChannelConfig{})
	svc := NewConversationService(db)
	ctx := context.Background()
	conv := seedConversation(t, db, ch, "v-1")

	etag0, err := svc.MessagesETag(ctx, testWorkspace, conv.ID, 1, 20)
	if err != nil || !strings.HasPrefix(etag0, `W/"messages:`+conv.ID+`:0:`) {
		t.Fatalf("MessagesETag = %q, %v", etag0, err)
	}

	addMessage(t, svc, conv.ID, domain.RoleUser, "hola")
	addMessage(t, svc, conv.ID, domain.RoleAgent, "¡hola!")

	etag1, _ := svc.MessagesETag(ctx, testWorkspace, conv.ID, 1, 20)
	if etag1 == etag0 {
		t.Fatalf("etag should change after new messages")
	}
	if page2, _ := svc.MessagesETag(ctx, testWorkspace, conv.ID, 2, 20); page2 == etag1 {
		t.Fatalf("etag should differ per page")
	}

	msgs, total, err := svc.Messages(ctx, testWorkspace, conv.ID, 1, 20)
	if err != nil || total != 2 || msgs[0].Content != "hola" {
		t.Fatalf("Messages = %+v (%d), %v", msgs, total, err)
	}
	if _, _, err := svc.Messages(ctx, "22222222-2222-2222-2222-222222222222", conv.ID, 1, 20); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("conversation must be workspace-scoped: %v", err)
	}
}

func TestConversationService_VisitorMessages(t *testing.T) {
	db := newTestDB(t)
	agent := seedAgent(t, db)
	web := seedChannel(t, db, agent.ID, domain.ChannelWebchat, domain.ChannelConfig{})
	wa := seedChannel(t, db, agent.ID, domain.ChannelWhatsApp, domain.ChannelConfig{PhoneNumberID: "PN1"})
	svc := NewConversationService(db)
	ctx := context.Background()

	conv := seedConversation(t, db, web, "v-1")
	addMessage(t, svc, conv.ID, domain.RoleUser, "hola")

	msgs, total, err := svc.VisitorMessages(ctx, web.ID, "v-1", 0, 0)
	if err != nil || total != 1 || len(msgs) != 1 {
		t.Fatalf("VisitorMessages = %+v (%d), %v", msgs, total, err)
	}
	if msgs, total, err := svc.VisitorMessages(ctx, web.ID, "nobody", 1, 20); err != nil || total != 0 || len(msgs) != 0 {
		t.Fatalf("unknown visitor should get an empty page: %d, %v", total, err)
	}
	if _, _, err := svc.VisitorMessages(ctx, wa.ID, "v-1", 1, 20); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("only webchat channels expose visitor history: %v", err)
	}
}

func TestConversationService_SetStatus(t *testing.T) {
	db := newTestDB(t)
	agent := seedAgent(t, db)
	ch := seedChannel(t, db, agent.ID, domain.ChannelWebchat, domain.ChannelConfig{})
	svc := NewConversationService(db)
	ctx := context.Background()
	conv := seedConversation(t, db, ch, "v-1")

	who := " marta "
	got, err := svc.SetStatus(ctx, testWorkspace, conv.ID, "open", &who)
	if err != nil || got.Status != domain.StatusOpen || got.AssignedTo != "marta" {
		t.Fatalf("SetStatus = %+v, %v", got, err)
	}
	got, err = svc.SetStatus(ctx, testWorkspace, conv.ID, "CLOSED", nil)
	if err != nil || got.Status != domain.StatusClosed || got.AssignedTo != "marta" {
		t.Fatalf("closing keeps the assignee: %+v, %v", got, err)
	}
	if _, err := svc.SetStatus(ctx, testWorkspace, conv.ID, "snoozed", nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, testWorkspace, "missing", "OPEN", nil); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/repo"
)

const testWorkspace = "11111111-1111-1111-1111-111111111111"

// newTestDB opens a private, migrated in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedAgent(t *testing.T, db *gorm.DB) *domain.Agent {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.EnsureWorkspace(ctx, db, testWorkspace, "Acme"); err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	a := &domain.Agent{WorkspaceID: testWorkspace, Name: "Luna"}
	if err := repo.CreateAgent(ctx, db, a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return a
}

func seedChannel(t *testing.T, db *gorm.DB, agentID string, typ domain.ChannelType, cfg domain.ChannelConfig) *domain.Channel {
	t.Helper()
	ch := &domain.Channel{AgentID: agentID, Type: typ, IsActive: true, Config: datatypes.NewJSONType(cfg)}
	if err := repo.CreateChannel(context.Background(), db, ch); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return ch
}

func seedConversation(t *testing.T, db *gorm.DB, ch *domain.Channel, externalID string) *domain.Conversation {
	t.Helper()
	c, _, err := repo.FindOrCreateConversation(context.Background(), db, ch, externalID, "Ana", "ana@example.com")
	if err != nil {
		t.Fatalf("FindOrCreateConversation: %v", err)
	}
	return c
}

func seedIntent(t *testing.T, db *gorm.DB, agentID string, in domain.Intent) *domain.Intent {
	t.Helper()
	in.AgentID = agentID
	if in.Name == "" {
		in.Name = "intent-" + uuid.NewString()[:8]
	}
	if in.ActionType == "" {
		in.ActionType = domain.ActionWebhook
	}
	if err := repo.CreateIntent(context.Background(), db, &in); err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	return &in
}

func mustJSON(t *testing.T, v any) datatypes.JSON {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return datatypes.JSON(b)
}

func reloadIntent(t *testing.T, db *gorm.DB, in *domain.Intent) *domain.Intent {
	t.Helper()
	got, err := repo.GetIntent(context.Background(), db, in.AgentID, in.ID)
	if err != nil {
		t.Fatalf("GetIntent: %v", err)
	}
	return got
}

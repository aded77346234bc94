package repo

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// newTestDB opens a private in-memory database. With migrate=true every
// table is created.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// seedAgent creates a workspace and one agent and returns the agent.
func seedAgent(t *testing.T, db *gorm.DB, workspaceID string) *domain.Agent {
	t.Helper()
	ctx := context.Background()
	if _, err := EnsureWorkspace(ctx, db, workspaceID, "ws"); err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	a := &domain.Agent{WorkspaceID: workspaceID, Name: "agent"}
	if err := CreateAgent(ctx, db, a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return a
}

func seedChannel(t *testing.T, db *gorm.DB, agentID string, typ domain.ChannelType, cfg domain.ChannelConfig) *domain.Channel {
	t.Helper()
	ch := &domain.Channel{AgentID: agentID, Type: typ, IsActive: true, Config: datatypes.NewJSONType(cfg)}
	if err := CreateChannel(context.Background(), db, ch); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return ch
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for workspaces and
// agents.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// EnsureWorkspace inserts the workspace when it does not exist yet and
// returns the stored row.
func EnsureWorkspace(ctx context.Context, db *gorm.DB, id, name string) (*domain.Workspace, error) {
	now := time.Now().UTC()
	ws := &domain.Workspace{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ws).Error; err != nil {
		return nil, err
	}
	var out domain.Workspace
	if err := db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAgent inserts an agent. An empty a.ID is assigned a UUID.
func CreateAgent(ctx context.Context, db *gorm.DB, a *domain.Agent) error {
	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	return db.WithContext(ctx).Create(a).Error
}

// GetAgent fetches an agent owned by workspaceID.
func GetAgent(ctx context.Context, db *gorm.DB, workspaceID, agentID string) (*domain.Agent, error) {
	var a domain.Agent
	err := db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", agentID, workspaceID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAgentByID fetches an agent without tenant scoping. Webhook ingestion
// uses it after the channel has already been resolved.
func GetAgentByID(ctx context.Context, db *gorm.DB, agentID string) (*domain.Agent, error) {
	var a domain.Agent
	if err := db.WithContext(ctx).Where("id = ?", agentID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAgentByName returns the first agent named name inside workspaceID.
func FindAgentByName(ctx context.Context, db *gorm.DB, workspaceID, name string) (*domain.Agent, error) {
	var a domain.Agent
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND name = ?", workspaceID, name).
		Order("created_at ASC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

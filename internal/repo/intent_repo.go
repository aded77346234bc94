// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Intent
// model and its execution audit log.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// CreateIntent inserts an intent. An empty in.ID is assigned a UUID.
func CreateIntent(ctx context.Context, db *gorm.DB, in *domain.Intent) error {
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	in.CreatedAt, in.UpdatedAt = now, now
	return db.WithContext(ctx).Create(in).Error
}

// ListIntents returns every intent of an agent in matching order:
// creation time ascending, ties broken by id. The order is what makes
// first-match-wins deterministic.
func ListIntents(ctx context.Context, db *gorm.DB, agentID string) ([]domain.Intent, error) {
	var out []domain.Intent
	err := db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListEnabledIntents is ListIntents restricted to enabled rows.
func ListEnabledIntents(ctx context.Context, db *gorm.DB, agentID string) ([]domain.Intent, error) {
	var out []domain.Intent
	err := db.WithContext(ctx).
		Where("agent_id = ? AND enabled = ?", agentID, true).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetIntent fetches a single intent scoped to its agent.
func GetIntent(ctx context.Context, db *gorm.DB, agentID, id string) (*domain.Intent, error) {
	var in domain.Intent
	err := db.WithContext(ctx).
		Where("id = ? AND agent_id = ?", id, agentID).
		First(&in).Error
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// UpdateIntent overwrites the editable fields of an intent. Counters are
// never touched here. Returns ErrNotFound if no row matched.
func UpdateIntent(ctx context.Context, db *gorm.DB, in *domain.Intent) error {
	res := db.WithContext(ctx).
		Model(&domain.Intent{}).
		Where("id = ? AND agent_id = ?", in.ID, in.AgentID).
		Select("name", "description", "trigger", "action_type", "action_url", "payload", "enabled", "updated_at").
		Updates(&domain.Intent{
			Name:        in.Name,
			Description: in.Description,
			Trigger:     in.Trigger,
			ActionType:  in.ActionType,
			ActionURL:   in.ActionURL,
			Payload:     in.Payload,
			Enabled:     in.Enabled,
			UpdatedAt:   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetIntentEnabled flips the enabled flag.
func SetIntentEnabled(ctx context.Context, db *gorm.DB, agentID, id string, enabled bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Intent{}).
		Where("id = ? AND agent_id = ?", id, agentID).
		Updates(map[string]any{"enabled": enabled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteIntent soft-deletes an intent.
func DeleteIntent(ctx context.Context, db *gorm.DB, agentID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND agent_id = ?", id, agentID).
		Delete(&domain.Intent{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordIntentTrigger bumps trigger_count and sets last_triggered in a single
// UPDATE, so concurrent triggers never lose an increment or move the counter
// backwards.
func RecordIntentTrigger(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Intent{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"trigger_count":  gorm.Expr("trigger_count + ?", 1),
			"last_triggered": at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateIntentRun appends an execution record.
func CreateIntentRun(ctx context.Context, db *gorm.DB, run *domain.IntentRun) error {
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(run).Error
}

// ListIntentRuns returns the most recent runs of an intent, newest first.
func ListIntentRuns(ctx context.Context, db *gorm.DB, intentID string, limit int) ([]domain.IntentRun, error) {
	var out []domain.IntentRun
	q := db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

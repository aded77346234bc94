// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Channel
// model and its correlation-key index.
//
// Every write to a channel also rewrites its row in channel_keys inside the
// same transaction, so lookups by (type, key) never observe a channel without
// its key or a key pointing at a stale channel.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// CreateChannel inserts a channel and its correlation key. It returns
// ErrDuplicate when another channel already owns the same (type, key).
func CreateChannel(ctx context.Context, db *gorm.DB, ch *domain.Channel) error {
	if strings.TrimSpace(ch.ID) == "" {
		ch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ch.CreatedAt, ch.UpdatedAt = now, now

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ch).Error; err != nil {
			return err
		}
		return putChannelKey(tx, ch)
	})
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateChannel persists config/isActive changes and re-indexes the
// correlation key. Returns ErrNotFound when the channel does not belong to
// agentID.
func UpdateChannel(ctx context.Context, db *gorm.DB, agentID string, ch *domain.Channel) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Channel{}).
			Where("id = ? AND agent_id = ?", ch.ID, agentID).
			Select("config", "is_active", "updated_at").
			Updates(map[string]any{
				"config":     ch.Config,
				"is_active":  ch.IsActive,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("channel_id = ?", ch.ID).Delete(&domain.ChannelKey{}).Error; err != nil {
			return err
		}
		return putChannelKey(tx, ch)
	})
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func putChannelKey(tx *gorm.DB, ch *domain.Channel) error {
	key := ch.CorrelationKey()
	if key == "" {
		return nil
	}
	return tx.Create(&domain.ChannelKey{
		Type:      ch.Type,
		Key:       key,
		ChannelID: ch.ID,
		CreatedAt: time.Now().UTC(),
	}).Error
}

// GetChannel fetches a channel by id.
func GetChannel(ctx context.Context, db *gorm.DB, id string) (*domain.Channel, error) {
	var ch domain.Channel
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetAgentChannel fetches a channel owned by agentID.
func GetAgentChannel(ctx context.Context, db *gorm.DB, agentID, id string) (*domain.Channel, error) {
	var ch domain.Channel
	err := db.WithContext(ctx).
		Where("id = ? AND agent_id = ?", id, agentID).
		First(&ch).Error
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListChannels returns all channels of an agent, oldest first.
func ListChannels(ctx context.Context, db *gorm.DB, agentID string) ([]domain.Channel, error) {
	var out []domain.Channel
	err := db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// FindChannelIDByKey resolves a provider correlation key through the index.
func FindChannelIDByKey(ctx context.Context, db *gorm.DB, t domain.ChannelType, key string) (string, error) {
	var row domain.ChannelKey
	err := db.WithContext(ctx).
		Where("type = ? AND key = ?", t, strings.TrimSpace(key)).
		First(&row).Error
	if err != nil {
		return "", err
	}
	return row.ChannelID, nil
}

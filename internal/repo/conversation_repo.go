// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// FindOrCreateConversation returns the conversation for (channel, externalID),
// creating it in StatusBot when absent. A concurrent insert that loses the
// race on the unique index re-reads the winner's row. created reports whether
// this call inserted the row.
//
// Contact details fill empty fields of an existing conversation but never
// overwrite known values.
func FindOrCreateConversation(ctx context.Context, db *gorm.DB, ch *domain.Channel, externalID, contactName, contactEmail string) (conv *domain.Conversation, created bool, err error) {
	find := func() (*domain.Conversation, error) {
		var c domain.Conversation
		err := db.WithContext(ctx).
			Where("channel_id = ? AND external_id = ?", ch.ID, externalID).
			First(&c).Error
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	c, err := find()
	switch {
	case err == nil:
		return c, false, fillContact(ctx, db, c, contactName, contactEmail)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	now := time.Now().UTC()
	c = &domain.Conversation{
		ID:           uuid.NewString(),
		AgentID:      ch.AgentID,
		ChannelID:    ch.ID,
		ExternalID:   externalID,
		ContactName:  contactName,
		ContactEmail: contactEmail,
		Status:       domain.StatusBot,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if !isDuplicate(err) {
			return nil, false, err
		}
		c, err = find()
		if err != nil {
			return nil, false, err
		}
		return c, false, nil
	}
	return c, true, nil
}

func fillContact(ctx context.Context, db *gorm.DB, c *domain.Conversation, name, email string) error {
	upd := map[string]any{}
	if c.ContactName == "" && name != "" {
		upd["contact_name"] = name
		c.ContactName = name
	}
	if c.ContactEmail == "" && email != "" {
		upd["contact_email"] = email
		c.ContactEmail = email
	}
	if len(upd) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", c.ID).Updates(upd).Error
}

// GetConversation fetches a conversation by id.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversationInWorkspace fetches a conversation whose agent belongs to
// workspaceID.
func GetConversationInWorkspace(ctx context.Context, db *gorm.DB, workspaceID, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Joins("JOIN agents ON agents.id = conversations.agent_id").
		Where("conversations.id = ? AND agents.workspace_id = ?", id, workspaceID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindConversation looks up a conversation by its channel thread key.
func FindConversation(ctx context.Context, db *gorm.DB, channelID, externalID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("channel_id = ? AND external_id = ?", channelID, externalID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountConversations returns how many conversations an agent has, optionally
// filtered by status.
func CountConversations(ctx context.Context, db *gorm.DB, agentID string, status domain.ConversationStatus) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Conversation{}).Where("agent_id = ?", agentID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListConversationsPage returns conversations ordered by most recent activity.
func ListConversationsPage(ctx context.Context, db *gorm.DB, agentID string, status domain.ConversationStatus, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	q := db.WithContext(ctx).Where("agent_id = ?", agentID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("COALESCE(last_message_at, created_at) DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateConversationStatus sets the status and, when assignee is non-nil,
// the assignee. Returns ErrNotFound if the conversation does not exist.
func UpdateConversationStatus(ctx context.Context, db *gorm.DB, id string, status domain.ConversationStatus, assignee *string) error {
	upd := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if assignee != nil {
		upd["assigned_to"] = *assignee
	}
	res := db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchConversation records message activity.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_message_at": at.UTC(), "updated_at": time.Now().UTC()}).Error
}

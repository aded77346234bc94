// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// CreateMessage inserts a new message row. ID and CreatedAt are assigned here.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	m.ID = uuid.NewString()
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRecentMessages returns up to limit of the latest messages, oldest first,
// which is the shape reply generators expect for history.
func ListRecentMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SetMessageProviderID stores the id the provider assigned to a sent message.
func SetMessageProviderID(ctx context.Context, db *gorm.DB, id, providerMessageID string) error {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		UpdateColumn("provider_message_id", providerMessageID).Error
}

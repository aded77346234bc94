// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for InboundReceipt,
// the de-duplication record for provider redeliveries and webchat retries.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/domain"
)

// GetReceipt returns a non-expired receipt or ErrNotFound.
func GetReceipt(ctx context.Context, db *gorm.DB, channelID, key string, now time.Time) (*domain.InboundReceipt, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.InboundReceipt
	err := db.WithContext(ctx).
		Where("channel_id = ? AND key = ? AND expires_at > ?", channelID, key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ClaimReceipt inserts a receipt for (channelID, key). It returns ErrDuplicate
// when a live receipt already exists, which callers treat as "already
// processed". An expired receipt for the same key is replaced.
func ClaimReceipt(ctx context.Context, db *gorm.DB, channelID, key string, ttl time.Duration) (*domain.InboundReceipt, error) {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("channel_id = ? AND key = ? AND expires_at <= ?", channelID, key, now).
		Delete(&domain.InboundReceipt{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.InboundReceipt{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// CompleteReceipt links the persisted user message and reply to a receipt.
func CompleteReceipt(ctx context.Context, db *gorm.DB, id, messageID, replyMessageID string) error {
	return db.WithContext(ctx).
		Model(&domain.InboundReceipt{}).
		Where("id = ?", id).
		Updates(map[string]any{"message_id": messageID, "reply_message_id": replyMessageID}).Error
}

// TakeStalledReceipt claims a receipt whose USER message was stored but
// whose reply never was. The message id is cleared while the caller finishes
// the reply, so concurrent redeliveries see the delivery as in flight. It
// reports whether this caller won the claim.
func TakeStalledReceipt(ctx context.Context, db *gorm.DB, id, messageID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.InboundReceipt{}).
		Where("id = ? AND message_id = ? AND (reply_message_id = '' OR reply_message_id IS NULL)", id, messageID).
		Update("message_id", "")
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseReceipt drops a receipt so a later redelivery is processed again.
func ReleaseReceipt(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.InboundReceipt{}).Error
}

// PurgeExpiredReceipts deletes receipts past their TTL and reports how many.
func PurgeExpiredReceipts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.InboundReceipt{})
	return res.RowsAffected, res.Error
}

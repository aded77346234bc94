package domain

import "time"

// InboundReceipt records that an inbound delivery was processed, keyed by
// (channel_id, key). Key is the provider message id for Meta webhooks or the
// client-supplied Idempotency-Key for webchat. Redeliveries that hit an
// existing receipt are acknowledged without creating duplicate messages.
type InboundReceipt struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	ChannelID      string    `gorm:"type:char(36);not null;uniqueIndex:ux_channel_receipt,priority:1"`
	Key            string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_channel_receipt,priority:2"`
	MessageID      string    `gorm:"type:char(36)"`
	ReplyMessageID string    `gorm:"type:char(36)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (InboundReceipt) TableName() string { return "inbound_receipts" }

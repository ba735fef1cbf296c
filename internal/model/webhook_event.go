package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is an append-only audit row per received Stripe event,
// deduplicated on the provider event id.
type WebhookEvent struct {
	ID            uint           `gorm:"primaryKey"`
	StripeEventID string         `gorm:"size:191;uniqueIndex"`
	EventType     string         `gorm:"size:100;index"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`
}

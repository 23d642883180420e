package models

import "time"

// ProcessedWebhookEvent is the durable dedup record for processor events.
type ProcessedWebhookEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (ProcessedWebhookEvent) TableName() string { return "processed_webhook_events" }

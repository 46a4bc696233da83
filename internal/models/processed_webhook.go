package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WebhookStatus string

const (
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// ProcessedWebhook dedups inbound e-signature provider callbacks on
// (provider, external event id) and caches the response so a replay returns
// the exact prior response with no additional state change.
type ProcessedWebhook struct {
	ID               string        `gorm:"type:uuid;primaryKey" json:"id"`
	Provider         string        `gorm:"uniqueIndex:idx_webhook_provider_event;type:varchar(64);not null" json:"provider"`
	ExternalEventID  string        `gorm:"uniqueIndex:idx_webhook_provider_event;type:varchar(255);not null" json:"externalEventId"`
	Status           WebhookStatus `gorm:"type:varchar(20);not null" json:"status"`
	CachedResponse   string        `gorm:"type:jsonb" json:"cachedResponse,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (w *ProcessedWebhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

func (ProcessedWebhook) TableName() string { return "processed_webhooks" }

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookwell/scheduling-core/internal/models"
)

// WebhookRepository backs C6's idempotent processing on (provider, webhook_id).
type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Get(ctx context.Context, provider, externalEventID string) (*models.ProcessedWebhook, error) {
	var w models.ProcessedWebhook
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_event_id = ?", provider, externalEventID).
		First(&w).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching processed webhook: %w", err)
	}
	return &w, nil
}

// InsertProcessing inserts a "processing" marker row, or leaves an existing
// one in place, matching spec §4.6 step 3's "insert a processing record (or
// leave existing processing in place)". Uses the same clause.OnConflict
// upsert idiom the teacher's event_handlers.go uses for service upserts.
func (r *WebhookRepository) InsertProcessing(ctx context.Context, w *models.ProcessedWebhook) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_event_id"}},
			DoNothing: true,
		}).
		Create(w).Error
	if err != nil {
		return fmt.Errorf("error inserting processing webhook marker: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Complete(ctx context.Context, id string, cachedResponse string) error {
	err := r.db.WithContext(ctx).Model(&models.ProcessedWebhook{}).Where("id = ?", id).
		Updates(map[string]any{"status": models.WebhookStatusCompleted, "cached_response": cachedResponse}).Error
	if err != nil {
		return fmt.Errorf("error completing webhook %s: %w", id, err)
	}
	return nil
}

func (r *WebhookRepository) Fail(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&models.ProcessedWebhook{}).Where("id = ?", id).
		Update("status", models.WebhookStatusFailed).Error
	if err != nil {
		return fmt.Errorf("error failing webhook %s: %w", id, err)
	}
	return nil
}

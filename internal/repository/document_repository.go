package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/models"
)

// DocumentRepository backs the NDA-gating step of C3 and the state
// transitions driven by C6.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) GetByHoldID(ctx context.Context, holdID string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("hold_id = ?", holdID).Order("created_at desc").First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching document for hold %s: %w", holdID, err)
	}
	return &doc, nil
}

func (r *DocumentRepository) LinkToBooking(tx *gorm.DB, holdID, bookingID string) error {
	result := tx.Model(&models.Document{}).Where("hold_id = ?", holdID).Update("booking_id", bookingID)
	if result.Error != nil {
		return fmt.Errorf("error linking document to booking: %w", result.Error)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("error creating document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Save(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("error saving document %s: %w", doc.ID, err)
	}
	return nil
}

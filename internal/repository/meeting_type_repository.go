package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/models"
)

// MeetingTypeRepository reads the (externally-managed) meeting-type
// catalog; CRUD for meeting types is out of scope (spec §1).
type MeetingTypeRepository struct {
	db *gorm.DB
}

func NewMeetingTypeRepository(db *gorm.DB) *MeetingTypeRepository {
	return &MeetingTypeRepository{db: db}
}

func (r *MeetingTypeRepository) GetBySlug(ctx context.Context, slug string) (*models.MeetingType, error) {
	var mt models.MeetingType
	err := r.db.WithContext(ctx).Where("slug = ? AND active = ?", slug, true).First(&mt).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching meeting type by slug %s: %w", slug, err)
	}
	return &mt, nil
}

func (r *MeetingTypeRepository) GetByID(ctx context.Context, id string) (*models.MeetingType, error) {
	var mt models.MeetingType
	err := r.db.WithContext(ctx).First(&mt, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching meeting type %s: %w", id, err)
	}
	return &mt, nil
}

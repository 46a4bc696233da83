package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/models"
)

// AvailabilityRepository loads the raw inputs C1 needs: rules, blackouts,
// and occupancy (active holds + confirmed bookings). It never mutates
// anything, matching the Availability Engine's read-only contract.
type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// GetRulesForOwner returns every active rule for ownerID that is either
// unscoped or scoped to meetingTypeID.
func (r *AvailabilityRepository) GetRulesForOwner(ctx context.Context, ownerID, meetingTypeID string) ([]models.AvailabilityRule, error) {
	var rules []models.AvailabilityRule
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND active = ? AND (meeting_type_id IS NULL OR meeting_type_id = ?)", ownerID, true, meetingTypeID).
		Order("day_of_week asc, start_time asc").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching availability rules for owner %s: %w", ownerID, err)
	}
	return rules, nil
}

func (r *AvailabilityRepository) GetBlackoutsForOwner(ctx context.Context, ownerID string) ([]models.BlackoutDate, error) {
	var blackouts []models.BlackoutDate
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&blackouts).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching blackout dates for owner %s: %w", ownerID, err)
	}
	return blackouts, nil
}

// GetOccupancy returns active holds and confirmed bookings for the meeting
// type whose window intersects [from, until).
func (r *AvailabilityRepository) GetOccupancy(ctx context.Context, meetingTypeID string, from, until time.Time) ([]models.SlotHold, []models.Booking, error) {
	var holds []models.SlotHold
	err := r.db.WithContext(ctx).
		Where("meeting_type_id = ? AND status = ? AND slot_start < ? AND slot_end > ?", meetingTypeID, models.HoldStatusActive, until, from).
		Find(&holds).Error
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching occupying holds: %w", err)
	}

	var bookings []models.Booking
	err = r.db.WithContext(ctx).
		Where("meeting_type_id = ? AND status = ? AND slot_start < ? AND slot_end > ?", meetingTypeID, models.BookingStatusConfirmed, until, from).
		Find(&bookings).Error
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching occupying bookings: %w", err)
	}

	return holds, bookings, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/models"
)

// BookingRepository handles booking data operations. Structure carried over
// from the teacher's internal/repository/booking_repository.go, retargeted
// from business/customer-scoped CRUD to the hold-conversion flow C3 needs.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&booking).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching booking by idempotency key: %w", err)
	}
	return &booking, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching booking %s: %w", id, err)
	}
	return &booking, nil
}

func (r *BookingRepository) Create(tx *gorm.DB, booking *models.Booking) error {
	if err := tx.Create(booking).Error; err != nil {
		return fmt.Errorf("error creating booking: %w", err)
	}
	return nil
}

// FindOverlappingConfirmed re-queries for a confirmed booking whose interval
// overlaps [start, end) on the same meeting type, guarding against a race
// between concurrent confirms of distinct holds (spec §4.3 step 4).
func FindOverlappingConfirmed(tx *gorm.DB, meetingTypeID string, start, end time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := tx.Where("meeting_type_id = ? AND status = ? AND slot_start < ? AND slot_end > ?",
		meetingTypeID, models.BookingStatusConfirmed, end, start).Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error finding overlapping bookings: %w", err)
	}
	return bookings, nil
}

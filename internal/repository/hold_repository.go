package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/models"
)

// HoldRepository backs C2. The conflict queries and the advisory-lock
// helper here are what the hold manager's serialization-lock-then-re-query
// defense (spec §4.2 step 2-3) is built on.
type HoldRepository struct {
	db *gorm.DB
}

func NewHoldRepository(db *gorm.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// WithSlotLock runs fn inside a transaction holding a transaction-scoped
// Postgres advisory lock keyed by (meeting_type_id, slot_start), so that
// concurrent create_hold calls for the identical slot are linearized
// (spec §4.2 step 2). The lock auto-releases on commit/rollback.
func (r *HoldRepository) WithSlotLock(ctx context.Context, meetingTypeID string, slotStart time.Time, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := meetingTypeID + "|" + slotStart.UTC().Format(time.RFC3339Nano)
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
			return fmt.Errorf("failed to acquire slot lock: %w", err)
		}
		return fn(tx)
	})
}

// GetByIdempotencyKey supports the idempotency short-circuit (spec §4.2
// step 1). Passing tx re-runs the lookup inside the caller's transaction
// (e.g. the slot lock), so a concurrent writer using the same key is
// visible to the re-check; tx nil uses the repository's own connection.
func (r *HoldRepository) GetByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*models.SlotHold, error) {
	db := tx
	if db == nil {
		db = r.db.WithContext(ctx)
	}
	var hold models.SlotHold
	err := db.Where("idempotency_key = ?", key).First(&hold).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching hold by idempotency key: %w", err)
	}
	return &hold, nil
}

// FindOverlappingActive re-queries, inside the slot lock, for any active
// hold whose interval overlaps [start, end) on the same meeting type.
func FindOverlappingActive(tx *gorm.DB, meetingTypeID string, start, end time.Time) ([]models.SlotHold, error) {
	var holds []models.SlotHold
	err := tx.Where("meeting_type_id = ? AND status = ? AND slot_start < ? AND slot_end > ?",
		meetingTypeID, models.HoldStatusActive, end, start).Find(&holds).Error
	if err != nil {
		return nil, fmt.Errorf("error finding overlapping holds: %w", err)
	}
	return holds, nil
}

func (r *HoldRepository) GetByID(ctx context.Context, id string) (*models.SlotHold, error) {
	var hold models.SlotHold
	err := r.db.WithContext(ctx).First(&hold, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching hold %s: %w", id, err)
	}
	return &hold, nil
}

// TransitionStatus performs a compare-and-set from fromStatus to toStatus,
// reporting whether a row was actually transitioned. Used by the sweeper and
// by every single-shot state transition out of active (spec §4.2).
func (r *HoldRepository) TransitionStatus(ctx context.Context, tx *gorm.DB, id string, fromStatus, toStatus models.HoldStatus) (bool, error) {
	db := tx
	if db == nil {
		db = r.db.WithContext(ctx)
	}
	result := db.Model(&models.SlotHold{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return false, fmt.Errorf("error transitioning hold %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ExpireDue selects every active hold past its TTL, for the periodic
// sweeper. Grounded on abhinandanwadwa-overbookr's expire_holds.go
// select-then-process-each-row shape.
func (r *HoldRepository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]models.SlotHold, error) {
	var holds []models.SlotHold
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.HoldStatusActive, now).
		Limit(limit).
		Find(&holds).Error
	if err != nil {
		return nil, fmt.Errorf("error selecting expired holds: %w", err)
	}
	return holds, nil
}

func (r *HoldRepository) Create(tx *gorm.DB, hold *models.SlotHold) error {
	if err := tx.Create(hold).Error; err != nil {
		return fmt.Errorf("error creating hold: %w", err)
	}
	return nil
}

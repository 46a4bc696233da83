package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvailabilityRule is a recurring weekly window during which a meeting type
// (or, when MeetingTypeID is empty, every one of the owner's types) can be
// booked. Multiple rules for the same day union together.
type AvailabilityRule struct {
	ID            string  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID       string  `gorm:"index:idx_availability_owner_day,priority:1;type:uuid;not null" json:"ownerId"`
	MeetingTypeID *string `gorm:"index;type:uuid" json:"meetingTypeId,omitempty"`
	DayOfWeek     int     `gorm:"index:idx_availability_owner_day,priority:2;not null" json:"dayOfWeek"` // 0=Sunday..6=Saturday
	StartTime     string  `gorm:"type:varchar(5);not null" json:"startTime"`                            // "HH:MM" host wall-clock
	EndTime       string  `gorm:"type:varchar(5);not null" json:"endTime"`
	EffectiveFrom time.Time  `gorm:"not null" json:"effectiveFrom"`
	EffectiveUntil *time.Time `json:"effectiveUntil,omitempty"`
	Active        bool    `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *AvailabilityRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (AvailabilityRule) TableName() string { return "availability_rules" }

// OverlapsWindow reports whether the rule's effective window overlaps the
// half-open window [from, until). A nil EffectiveUntil means open-ended.
func (r AvailabilityRule) OverlapsWindow(from, until time.Time) bool {
	if r.EffectiveUntil != nil && !r.EffectiveUntil.After(from) {
		return false
	}
	return r.EffectiveFrom.Before(until)
}

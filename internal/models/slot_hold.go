package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConverted HoldStatus = "converted"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusReleased  HoldStatus = "released"
)

// SlotHold is a short-lived exclusive reservation of a slot. Uniqueness of
// IdempotencyKey and the (meeting_type_id, slot_start, slot_end) exclusion
// invariant (emulated in Postgres via an advisory lock plus a migration-time
// EXCLUDE USING gist constraint, see internal/database) are what make
// concurrent create-hold calls on the identical slot resolve to one winner.
type SlotHold struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	MeetingTypeID  string     `gorm:"index:idx_holds_meeting_type_status,priority:1;type:uuid;not null" json:"meetingTypeId"`
	SlotStart      time.Time  `gorm:"index;not null" json:"slotStart"`
	SlotEnd        time.Time  `gorm:"not null" json:"slotEnd"`
	GuestEmail     string     `gorm:"type:varchar(320);not null" json:"guestEmail"`
	GuestName      *string    `gorm:"type:varchar(255)" json:"guestName,omitempty"`
	Status         HoldStatus `gorm:"index:idx_holds_meeting_type_status,priority:2;type:varchar(20);not null" json:"status"`
	ExpiresAt      time.Time  `gorm:"index;not null" json:"expiresAt"`
	IdempotencyKey string     `gorm:"uniqueIndex;type:uuid;not null" json:"idempotencyKey"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (h *SlotHold) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

func (SlotHold) TableName() string { return "slot_holds" }

// Overlaps reports whether this hold's [SlotStart, SlotEnd) intersects the
// given half-open interval. Buffers are never added here (see spec §4.2).
func (h SlotHold) Overlaps(start, end time.Time) bool {
	return h.SlotStart.Before(end) && start.Before(h.SlotEnd)
}

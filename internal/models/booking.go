package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus defines the possible statuses of a booking. Transitions out
// of Confirmed are monotonic; there is no return path to Confirmed.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCanceled  BookingStatus = "canceled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Booking is the durable reservation produced by converting a SlotHold.
type Booking struct {
	ID             string        `gorm:"type:uuid;primaryKey" json:"id"`
	MeetingTypeID  string        `gorm:"index:idx_bookings_meeting_type_status,priority:1;type:uuid;not null" json:"meetingTypeId"`
	HostUserID     string        `gorm:"index;type:uuid;not null" json:"hostUserId"`
	HoldID         string        `gorm:"index;type:uuid;not null" json:"holdId"`
	SlotStart      time.Time     `gorm:"index;not null" json:"slotStart"`
	SlotEnd        time.Time     `gorm:"not null" json:"slotEnd"`
	GuestEmail     string        `gorm:"type:varchar(320);not null" json:"guestEmail"`
	GuestName      string        `gorm:"type:varchar(255);not null" json:"guestName"`
	GuestTimezone  string        `gorm:"type:varchar(64);not null" json:"guestTimezone"`
	GuestNotes     string        `gorm:"type:text" json:"guestNotes,omitempty"`
	Status         BookingStatus `gorm:"index:idx_bookings_meeting_type_status,priority:2;type:varchar(20);not null" json:"status"`
	IdempotencyKey string        `gorm:"uniqueIndex;type:uuid;not null" json:"idempotencyKey"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

func (Booking) TableName() string { return "bookings" }

// Overlaps reports whether this booking's [SlotStart, SlotEnd) intersects
// the given half-open interval.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.SlotStart.Before(end) && start.Before(b.SlotEnd)
}

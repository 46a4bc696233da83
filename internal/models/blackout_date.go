package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlackoutDate removes availability on a specific (or yearly-recurring)
// calendar date, either entirely or for a wall-clock sub-window.
type BlackoutDate struct {
	ID              string  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID         string  `gorm:"index;type:uuid;not null" json:"ownerId"`
	Date            time.Time `gorm:"type:date;not null" json:"date"`
	StartTime       *string `gorm:"type:varchar(5)" json:"startTime,omitempty"` // nil start+end => whole day
	EndTime         *string `gorm:"type:varchar(5)" json:"endTime,omitempty"`
	RecurringYearly bool    `gorm:"not null;default:false" json:"recurringYearly"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BlackoutDate) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

func (BlackoutDate) TableName() string { return "blackout_dates" }

// IsFullDay reports whether the blackout covers the entire date.
func (b BlackoutDate) IsFullDay() bool {
	return b.StartTime == nil || b.EndTime == nil
}

// Malformed reports whether a partial blackout has start >= end, in which
// case it must be ignored per the availability algorithm's edge cases.
func (b BlackoutDate) Malformed() bool {
	if b.IsFullDay() {
		return false
	}
	return *b.StartTime >= *b.EndTime
}

// MatchesDate reports whether this blackout applies to the given calendar
// date, honoring the recurring-yearly month+day match.
func (b BlackoutDate) MatchesDate(d time.Time) bool {
	if b.RecurringYearly {
		return b.Date.Month() == d.Month() && b.Date.Day() == d.Day()
	}
	y1, m1, d1 := b.Date.Date()
	y2, m2, d2 := d.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MeetingType is the bookable offering a host publishes under a unique slug.
// Duration and buffers are immutable in spirit once live holds reference them;
// this module never updates a meeting type, and neither a DB constraint nor
// a service-layer check guards those fields against outside writes.
type MeetingType struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID        string `gorm:"index;type:uuid;not null" json:"ownerId"`
	Slug           string `gorm:"uniqueIndex:idx_meeting_types_owner_slug;type:varchar(255);not null" json:"slug"`
	Name           string `gorm:"type:varchar(255);not null" json:"name"`
	Timezone       string `gorm:"type:varchar(64);not null" json:"timezone"` // owner's IANA zone
	DurationMinutes int   `gorm:"not null" json:"durationMinutes"`
	BufferBeforeMinutes int `gorm:"not null;default:0" json:"bufferBeforeMinutes"`
	BufferAfterMinutes  int `gorm:"not null;default:0" json:"bufferAfterMinutes"`
	Location       string `gorm:"type:text" json:"location,omitempty"`
	RequiresNDA    bool   `gorm:"not null;default:false;column:requires_nda" json:"requiresNda"`
	Active         bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *MeetingType) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (MeetingType) TableName() string { return "meeting_types" }

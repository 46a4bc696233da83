package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentStatus string

const (
	DocumentStatusPending DocumentStatus = "pending"
	DocumentStatusSent    DocumentStatus = "sent"
	DocumentStatusSigned  DocumentStatus = "signed"
	DocumentStatusExpired DocumentStatus = "expired"
	DocumentStatusRevoked DocumentStatus = "revoked"
)

// documentStatusRank orders DocumentStatus so out-of-order webhook
// redeliveries can be rejected; expired/revoked are terminal and rank
// above every in-flight state.
var documentStatusRank = map[DocumentStatus]int{
	DocumentStatusPending: 0,
	DocumentStatusSent:    1,
	DocumentStatusSigned:  2,
	DocumentStatusExpired: 3,
	DocumentStatusRevoked: 4,
}

// CanAdvanceTo reports whether transitioning from d to target is a
// forward move. A document never moves backward (e.g. signed -> sent).
func (d DocumentStatus) CanAdvanceTo(target DocumentStatus) bool {
	return documentStatusRank[target] > documentStatusRank[d]
}

// Document tracks an NDA e-signature envelope. Status transitions strictly
// forward; pending -> sent -> signed is the normal path.
type Document struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	HoldID       string         `gorm:"index;type:uuid;not null" json:"holdId"`
	BookingID    *string        `gorm:"index;type:uuid" json:"bookingId,omitempty"`
	Status       DocumentStatus `gorm:"type:varchar(20);not null" json:"status"`
	SignerEmail  string         `gorm:"type:varchar(320);not null" json:"signerEmail"`
	SignerName   string         `gorm:"type:varchar(255)" json:"signerName,omitempty"`
	EnvelopeID   string         `gorm:"index;type:varchar(255)" json:"envelopeId,omitempty"`
	SentAt       *time.Time     `json:"sentAt,omitempty"`
	SignedAt     *time.Time     `json:"signedAt,omitempty"`
	AuditPayload string         `gorm:"type:jsonb" json:"auditPayload,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

func (Document) TableName() string { return "documents" }

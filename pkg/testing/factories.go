// Package testing provides builder-pattern test data factories for the
// scheduling core's domain models, following the teacher's
// pkg/testing/factories.go shape (WithX chain methods, a Build() that
// only sets an ID when one was explicitly given).
package testing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookwell/scheduling-core/internal/models"
)

// NewUUID generates a new UUID string for testing.
func NewUUID() string {
	return uuid.New().String()
}

// NewTestEmail generates a unique test email address.
func NewTestEmail() string {
	return fmt.Sprintf("test-%s@example.com", uuid.New().String()[:8])
}

// MeetingTypeFactory creates test MeetingType instances with sensible
// defaults.
type MeetingTypeFactory struct {
	id                  string
	ownerID             string
	slug                string
	name                string
	timezone            string
	durationMinutes     int
	bufferBeforeMinutes int
	bufferAfterMinutes  int
	requiresNDA         bool
	active              bool
}

func NewMeetingTypeFactory() *MeetingTypeFactory {
	return &MeetingTypeFactory{
		ownerID:         NewUUID(),
		slug:            "test-meeting-" + uuid.New().String()[:8],
		name:            "Test Meeting",
		timezone:        "America/New_York",
		durationMinutes: 30,
		active:          true,
	}
}

func (f *MeetingTypeFactory) WithID(id string) *MeetingTypeFactory {
	f.id = id
	return f
}

func (f *MeetingTypeFactory) WithOwnerID(ownerID string) *MeetingTypeFactory {
	f.ownerID = ownerID
	return f
}

func (f *MeetingTypeFactory) WithSlug(slug string) *MeetingTypeFactory {
	f.slug = slug
	return f
}

func (f *MeetingTypeFactory) WithDuration(minutes int) *MeetingTypeFactory {
	f.durationMinutes = minutes
	return f
}

func (f *MeetingTypeFactory) WithBuffers(before, after int) *MeetingTypeFactory {
	f.bufferBeforeMinutes = before
	f.bufferAfterMinutes = after
	return f
}

func (f *MeetingTypeFactory) WithTimezone(tz string) *MeetingTypeFactory {
	f.timezone = tz
	return f
}

// RequiringNDA configures the meeting type to gate booking on a signed NDA.
func (f *MeetingTypeFactory) RequiringNDA() *MeetingTypeFactory {
	f.requiresNDA = true
	return f
}

func (f *MeetingTypeFactory) AsInactive() *MeetingTypeFactory {
	f.active = false
	return f
}

func (f *MeetingTypeFactory) Build() *models.MeetingType {
	return &models.MeetingType{
		ID:                  f.id,
		OwnerID:             f.ownerID,
		Slug:                f.slug,
		Name:                f.name,
		Timezone:            f.timezone,
		DurationMinutes:     f.durationMinutes,
		BufferBeforeMinutes: f.bufferBeforeMinutes,
		BufferAfterMinutes:  f.bufferAfterMinutes,
		RequiresNDA:         f.requiresNDA,
		Active:              f.active,
	}
}

// AvailabilityRuleFactory creates test AvailabilityRule instances.
type AvailabilityRuleFactory struct {
	id            string
	ownerID       string
	meetingTypeID *string
	dayOfWeek     int
	startTime     string
	endTime       string
	effectiveFrom time.Time
	active        bool
}

func NewAvailabilityRuleFactory() *AvailabilityRuleFactory {
	return &AvailabilityRuleFactory{
		ownerID:       NewUUID(),
		dayOfWeek:     1,
		startTime:     "09:00",
		endTime:       "17:00",
		effectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		active:        true,
	}
}

func (f *AvailabilityRuleFactory) WithOwnerID(ownerID string) *AvailabilityRuleFactory {
	f.ownerID = ownerID
	return f
}

func (f *AvailabilityRuleFactory) WithMeetingTypeID(meetingTypeID string) *AvailabilityRuleFactory {
	f.meetingTypeID = &meetingTypeID
	return f
}

func (f *AvailabilityRuleFactory) WithDayOfWeek(day int) *AvailabilityRuleFactory {
	f.dayOfWeek = day
	return f
}

func (f *AvailabilityRuleFactory) WithWindow(start, end string) *AvailabilityRuleFactory {
	f.startTime = start
	f.endTime = end
	return f
}

func (f *AvailabilityRuleFactory) Build() *models.AvailabilityRule {
	return &models.AvailabilityRule{
		ID:            f.id,
		OwnerID:       f.ownerID,
		MeetingTypeID: f.meetingTypeID,
		DayOfWeek:     f.dayOfWeek,
		StartTime:     f.startTime,
		EndTime:       f.endTime,
		EffectiveFrom: f.effectiveFrom,
		Active:        f.active,
	}
}

// SlotHoldFactory creates test SlotHold instances.
type SlotHoldFactory struct {
	id             string
	meetingTypeID  string
	slotStart      time.Time
	slotEnd        time.Time
	guestEmail     string
	guestName      *string
	status         models.HoldStatus
	expiresAt      time.Time
	idempotencyKey string
}

func NewSlotHoldFactory() *SlotHoldFactory {
	start := time.Now().Add(48 * time.Hour)
	return &SlotHoldFactory{
		meetingTypeID:  NewUUID(),
		slotStart:      start,
		slotEnd:        start.Add(30 * time.Minute),
		guestEmail:     NewTestEmail(),
		status:         models.HoldStatusActive,
		expiresAt:      time.Now().Add(15 * time.Minute),
		idempotencyKey: NewUUID(),
	}
}

func (f *SlotHoldFactory) WithID(id string) *SlotHoldFactory {
	f.id = id
	return f
}

func (f *SlotHoldFactory) WithMeetingTypeID(id string) *SlotHoldFactory {
	f.meetingTypeID = id
	return f
}

func (f *SlotHoldFactory) WithSlot(start, end time.Time) *SlotHoldFactory {
	f.slotStart = start
	f.slotEnd = end
	return f
}

func (f *SlotHoldFactory) WithGuestEmail(email string) *SlotHoldFactory {
	f.guestEmail = email
	return f
}

func (f *SlotHoldFactory) WithIdempotencyKey(key string) *SlotHoldFactory {
	f.idempotencyKey = key
	return f
}

func (f *SlotHoldFactory) AsExpired() *SlotHoldFactory {
	f.status = models.HoldStatusExpired
	f.expiresAt = time.Now().Add(-time.Minute)
	return f
}

func (f *SlotHoldFactory) AsReleased() *SlotHoldFactory {
	f.status = models.HoldStatusReleased
	return f
}

func (f *SlotHoldFactory) Build() *models.SlotHold {
	return &models.SlotHold{
		ID:             f.id,
		MeetingTypeID:  f.meetingTypeID,
		SlotStart:      f.slotStart,
		SlotEnd:        f.slotEnd,
		GuestEmail:     f.guestEmail,
		GuestName:      f.guestName,
		Status:         f.status,
		ExpiresAt:      f.expiresAt,
		IdempotencyKey: f.idempotencyKey,
	}
}

// BookingFactory creates test Booking instances.
type BookingFactory struct {
	id             string
	meetingTypeID  string
	hostUserID     string
	holdID         string
	slotStart      time.Time
	slotEnd        time.Time
	guestEmail     string
	guestName      string
	guestTimezone  string
	status         models.BookingStatus
	idempotencyKey string
}

func NewBookingFactory() *BookingFactory {
	start := time.Now().Add(48 * time.Hour)
	return &BookingFactory{
		meetingTypeID:  NewUUID(),
		hostUserID:     NewUUID(),
		holdID:         NewUUID(),
		slotStart:      start,
		slotEnd:        start.Add(30 * time.Minute),
		guestEmail:     NewTestEmail(),
		guestName:      "Test Guest",
		guestTimezone:  "America/Los_Angeles",
		status:         models.BookingStatusConfirmed,
		idempotencyKey: NewUUID(),
	}
}

func (f *BookingFactory) WithID(id string) *BookingFactory {
	f.id = id
	return f
}

func (f *BookingFactory) WithMeetingTypeID(id string) *BookingFactory {
	f.meetingTypeID = id
	return f
}

func (f *BookingFactory) WithHoldID(id string) *BookingFactory {
	f.holdID = id
	return f
}

func (f *BookingFactory) WithSlot(start, end time.Time) *BookingFactory {
	f.slotStart = start
	f.slotEnd = end
	return f
}

func (f *BookingFactory) WithStatus(status models.BookingStatus) *BookingFactory {
	f.status = status
	return f
}

func (f *BookingFactory) AsCanceled() *BookingFactory {
	f.status = models.BookingStatusCanceled
	return f
}

func (f *BookingFactory) Build() *models.Booking {
	return &models.Booking{
		ID:             f.id,
		MeetingTypeID:  f.meetingTypeID,
		HostUserID:     f.hostUserID,
		HoldID:         f.holdID,
		SlotStart:      f.slotStart,
		SlotEnd:        f.slotEnd,
		GuestEmail:     f.guestEmail,
		GuestName:      f.guestName,
		GuestTimezone:  f.guestTimezone,
		Status:         f.status,
		IdempotencyKey: f.idempotencyKey,
	}
}

// DocumentFactory creates test Document instances.
type DocumentFactory struct {
	id          string
	holdID      string
	bookingID   *string
	status      models.DocumentStatus
	signerEmail string
	signerName  string
	envelopeID  string
}

func NewDocumentFactory() *DocumentFactory {
	return &DocumentFactory{
		holdID:      NewUUID(),
		status:      models.DocumentStatusPending,
		signerEmail: NewTestEmail(),
		signerName:  "Test Guest",
		envelopeID:  NewUUID(),
	}
}

func (f *DocumentFactory) WithHoldID(id string) *DocumentFactory {
	f.holdID = id
	return f
}

func (f *DocumentFactory) WithBookingID(id string) *DocumentFactory {
	f.bookingID = &id
	return f
}

func (f *DocumentFactory) AsSigned() *DocumentFactory {
	f.status = models.DocumentStatusSigned
	return f
}

func (f *DocumentFactory) AsSent() *DocumentFactory {
	f.status = models.DocumentStatusSent
	return f
}

func (f *DocumentFactory) Build() *models.Document {
	return &models.Document{
		ID:          f.id,
		HoldID:      f.holdID,
		BookingID:   f.bookingID,
		Status:      f.status,
		SignerEmail: f.signerEmail,
		SignerName:  f.signerName,
		EnvelopeID:  f.envelopeID,
	}
}

// NewCreateHoldRequest builds a POST /book/:slug/hold request body for
// API-level testing.
func NewCreateHoldRequest() map[string]interface{} {
	start := time.Now().Add(48 * time.Hour)
	return map[string]interface{}{
		"slotStart":      start.Format(time.RFC3339),
		"slotEnd":        start.Add(30 * time.Minute).Format(time.RFC3339),
		"email":          NewTestEmail(),
		"idempotencyKey": NewUUID(),
	}
}

// NewConfirmBookingRequest builds a POST /book/:slug/confirm request body.
func NewConfirmBookingRequest(holdID string) map[string]interface{} {
	return map[string]interface{}{
		"holdId":         holdID,
		"guestName":      "Test Guest",
		"guestTimezone":  "America/Los_Angeles",
		"idempotencyKey": NewUUID(),
	}
}

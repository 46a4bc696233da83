package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/apierr"
	"github.com/bookwell/scheduling-core/internal/client"
	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/pkg/events"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// EventPublisher is the interface the core depends on, so pkg/events.Publisher
// or a test double can stand in interchangeably — carried over from the
// teacher's service.go EventPublisher interface.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// HoldService is C2, the Hold Manager. CreateHold implements the
// three-layer concurrency defense of spec §4.2: idempotency short-circuit,
// a transaction-scoped advisory-lock serialization, and a conflict
// re-query backstopped by the storage-level exclusion constraint.
type HoldService struct {
	holds        *repository.HoldRepository
	meetingTypes *repository.MeetingTypeRepository
	documents    *repository.DocumentRepository
	signing      *client.SigningClient
	publisher    EventPublisher
	ttl          time.Duration
	logger       *logger.Logger
}

func NewHoldService(
	holds *repository.HoldRepository,
	meetingTypes *repository.MeetingTypeRepository,
	documents *repository.DocumentRepository,
	signing *client.SigningClient,
	publisher EventPublisher,
	ttl time.Duration,
	log *logger.Logger,
) *HoldService {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &HoldService{
		holds:        holds,
		meetingTypes: meetingTypes,
		documents:    documents,
		signing:      signing,
		publisher:    publisher,
		ttl:          ttl,
		logger:       log,
	}
}

type CreateHoldRequest struct {
	MeetingTypeID  string
	SlotStart      time.Time
	SlotEnd        time.Time
	GuestEmail     string
	GuestName      *string
	IdempotencyKey string
}

// CreateHold returns the hold (new or pre-existing, per idempotency) or a
// typed failure. See spec §4.2 for the full protocol.
func (s *HoldService) CreateHold(ctx context.Context, req CreateHoldRequest) (*models.SlotHold, error) {
	// Layer 1: idempotency short-circuit.
	existing, err := s.holds.GetByIdempotencyKey(ctx, nil, req.IdempotencyKey)
	if err != nil {
		return nil, apierr.Transient("failed to check idempotency key", err)
	}
	if existing != nil {
		if existing.Status == models.HoldStatusActive {
			s.logger.Info("idempotent replay of create-hold", "idempotency_key", req.IdempotencyKey, "hold_id", existing.ID)
			return existing, nil
		}
		return nil, apierr.New(apierr.KindSlotUnavailable, "previous hold for this idempotency key is no longer active")
	}

	mt, err := s.meetingTypes.GetByID(ctx, req.MeetingTypeID)
	if err != nil {
		return nil, apierr.Transient("failed to load meeting type", err)
	}
	if mt == nil || !mt.Active {
		return nil, apierr.NotFound("meeting type %s not found", req.MeetingTypeID)
	}

	var created *models.SlotHold
	wonRace := false

	// Layer 2: transaction-scoped advisory lock keyed by (meeting_type_id,
	// slot_start) linearizes concurrent attempts at the identical slot.
	err = s.holds.WithSlotLock(ctx, req.MeetingTypeID, req.SlotStart, func(tx *gorm.DB) error {
		// Re-check the idempotency key inside the lock: two truly
		// simultaneous requests sharing one key can both pass the layer-1
		// check before either commits, so whichever acquires the slot
		// lock second must still see the winner's row and replay it
		// instead of racing into the overlap check below.
		if dup, err := s.holds.GetByIdempotencyKey(ctx, tx, req.IdempotencyKey); err != nil {
			return apierr.Transient("failed to recheck idempotency key", err)
		} else if dup != nil {
			created = dup
			return nil
		}

		// Layer 3: re-query for any overlapping active hold or confirmed
		// booking; the storage-level exclusion constraint is the backstop
		// if this check races. The lock only serializes attempts with the
		// identical slot_start, so overlapping holds with different starts
		// (and writers outside this code path) rely on that constraint.
		overlapping, err := repository.FindOverlappingActive(tx, req.MeetingTypeID, req.SlotStart, req.SlotEnd)
		if err != nil {
			return apierr.Transient("failed to check for conflicting holds", err)
		}
		if len(overlapping) > 0 {
			return apierr.SlotUnavailable("slot already held")
		}
		confirmedBookings, err := repository.FindOverlappingConfirmed(tx, req.MeetingTypeID, req.SlotStart, req.SlotEnd)
		if err != nil {
			return apierr.Transient("failed to check for conflicting bookings", err)
		}
		if len(confirmedBookings) > 0 {
			return apierr.SlotUnavailable("slot already booked")
		}

		hold := &models.SlotHold{
			MeetingTypeID:  req.MeetingTypeID,
			SlotStart:      req.SlotStart,
			SlotEnd:        req.SlotEnd,
			GuestEmail:     req.GuestEmail,
			GuestName:      req.GuestName,
			Status:         models.HoldStatusActive,
			ExpiresAt:      timeNow().Add(s.ttl),
			IdempotencyKey: req.IdempotencyKey,
		}

		if err := s.holds.Create(tx, hold); err != nil {
			return apierr.Transient("failed to create hold", err)
		}
		created = hold
		wonRace = true
		return nil
	})
	if err != nil {
		if apiErr, ok := apierr.As(err); ok {
			return nil, apiErr
		}
		return nil, apierr.Transient("failed to create hold", err)
	}
	if !wonRace {
		s.logger.Info("idempotent replay of create-hold under concurrent contention", "idempotency_key", req.IdempotencyKey, "hold_id", created.ID)
		return created, nil
	}

	// Emit strictly after commit (spec §4.2 "Failure semantics").
	if pubErr := s.publisher.Publish(ctx, events.SlotHeldEvent, slotHeldPayload(created)); pubErr != nil {
		s.logger.Error("failed to publish slot.held", "hold_id", created.ID, "error", pubErr)
	}

	if mt.RequiresNDA {
		s.startSigning(ctx, created)
	}

	return created, nil
}

// startSigning kicks off the NDA envelope for a hold on a meeting type that
// requires one (spec §3: "Document ⟶ Hold (initial)"). Best-effort: a
// failure here never fails hold creation, matching the no-failure
// propagation rule for optional collaborators in spec §6.
func (s *HoldService) startSigning(ctx context.Context, hold *models.SlotHold) {
	guestName := ""
	if hold.GuestName != nil {
		guestName = *hold.GuestName
	}

	envelopeID, err := s.signing.CreateEnvelope(ctx, client.CreateEnvelopeRequest{
		SignerEmail: hold.GuestEmail,
		SignerName:  guestName,
		HoldID:      hold.ID,
	})
	if err != nil {
		s.logger.Error("failed to create signing envelope", "hold_id", hold.ID, "error", err)
		return
	}
	if envelopeID == "" {
		// Provider unconfigured: no envelope exists, so no document is
		// persisted and no nda.created is emitted.
		return
	}

	doc := &models.Document{
		HoldID:      hold.ID,
		Status:      models.DocumentStatusPending,
		SignerEmail: hold.GuestEmail,
		SignerName:  guestName,
		EnvelopeID:  envelopeID,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		s.logger.Error("failed to persist document", "hold_id", hold.ID, "error", err)
		return
	}
	if pubErr := s.publisher.Publish(ctx, events.NdaCreatedEvent, map[string]any{
		"document_id": doc.ID,
		"hold_id":     hold.ID,
	}); pubErr != nil {
		s.logger.Error("failed to publish nda.created", "hold_id", hold.ID, "error", pubErr)
	}
}

// ReleaseHold transitions an active hold to released, guest-initiated.
func (s *HoldService) ReleaseHold(ctx context.Context, holdID string) error {
	hold, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		return apierr.Transient("failed to load hold", err)
	}
	if hold == nil {
		return apierr.NotFound("hold %s not found", holdID)
	}
	transitioned, err := s.holds.TransitionStatus(ctx, nil, holdID, models.HoldStatusActive, models.HoldStatusReleased)
	if err != nil {
		return apierr.Transient("failed to release hold", err)
	}
	if !transitioned {
		return apierr.Validation("hold %s is not active", holdID)
	}
	if pubErr := s.publisher.Publish(ctx, events.SlotReleasedEvent, slotReleasedPayload(hold, "canceled")); pubErr != nil {
		s.logger.Error("failed to publish slot.released", "hold_id", holdID, "error", pubErr)
	}
	return nil
}

func (s *HoldService) GetHold(ctx context.Context, holdID string) (*models.SlotHold, error) {
	hold, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		return nil, apierr.Transient("failed to load hold", err)
	}
	if hold == nil {
		return nil, apierr.NotFound("hold %s not found", holdID)
	}
	return hold, nil
}

// SweepExpired is the periodic job from spec §4.2's "Expiration" paragraph,
// grounded on abhinandanwadwa-overbookr's expire_holds.go: select candidate
// rows, then CAS each one individually so the emitted slot.released event
// only fires for rows this sweep actually transitioned (spec §9 open
// question resolution), and one bad row never aborts the rest of the sweep.
func (s *HoldService) SweepExpired(ctx context.Context) (int, error) {
	now := timeNow()
	due, err := s.holds.ExpireDue(ctx, now, 500)
	if err != nil {
		return 0, fmt.Errorf("sweep: failed to select due holds: %w", err)
	}

	expiredCount := 0
	for _, hold := range due {
		transitioned, err := s.holds.TransitionStatus(ctx, nil, hold.ID, models.HoldStatusActive, models.HoldStatusExpired)
		if err != nil {
			s.logger.Error("sweep: failed to expire hold, continuing", "hold_id", hold.ID, "error", err)
			continue
		}
		if !transitioned {
			continue // already transitioned by a concurrent sweeper process
		}
		expiredCount++
		if pubErr := s.publisher.Publish(ctx, events.SlotReleasedEvent, slotReleasedPayload(&hold, "expired")); pubErr != nil {
			// Best-effort: a failed emission never rolls back the DB
			// transition (spec §7); a replay of the sweep will not
			// re-emit because the row is no longer active.
			s.logger.Error("sweep: failed to publish slot.released", "hold_id", hold.ID, "error", pubErr)
		}
	}
	return expiredCount, nil
}

func slotHeldPayload(h *models.SlotHold) map[string]any {
	return map[string]any{
		"hold_id":         h.ID,
		"meeting_type_id": h.MeetingTypeID,
		"slot_start":      h.SlotStart,
		"slot_end":        h.SlotEnd,
	}
}

func slotReleasedPayload(h *models.SlotHold, reason string) map[string]any {
	return map[string]any{
		"hold_id":         h.ID,
		"meeting_type_id": h.MeetingTypeID,
		"slot_start":      h.SlotStart,
		"slot_end":        h.SlotEnd,
		"reason":          reason,
	}
}

// timeNow is the clock the hold and booking services read through, kept as
// a package-level variable so it can be replaced within the package.
// AvailabilityService.GetAvailableSlots takes now as a parameter instead;
// WebhookService stamps document timestamps with time.Now directly.
var timeNow = time.Now

package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookwell/scheduling-core/internal/apierr"
	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/pkg/events"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

const signwellProvider = "signwell"

// WebhookService is C6, the Webhook Reactor. It implements the protocol in
// spec §4.6: constant-time signature verification, idempotent processing
// keyed on (provider, webhook_id), Document state transitions, and nda.*
// event publication. No pack example implements webhook HMAC verification,
// so this one piece leans on stdlib crypto/hmac (see DESIGN.md).
type WebhookService struct {
	webhooks        *repository.WebhookRepository
	documents       *repository.DocumentRepository
	cache           *repository.CacheRepository
	publisher       EventPublisher
	sharedSecret    string
	developmentMode bool
	logger          *logger.Logger
}

func NewWebhookService(
	webhooks *repository.WebhookRepository,
	documents *repository.DocumentRepository,
	cache *repository.CacheRepository,
	publisher EventPublisher,
	sharedSecret string,
	developmentMode bool,
	log *logger.Logger,
) *WebhookService {
	return &WebhookService{
		webhooks:        webhooks,
		documents:       documents,
		cache:           cache,
		publisher:       publisher,
		sharedSecret:    sharedSecret,
		developmentMode: developmentMode,
		logger:          log,
	}
}

// cachedResponseTTL bounds how long a completed webhook's response is
// kept in the process-wide cache for replay, well past the redelivery
// window any real e-signature provider would retry within.
const cachedResponseTTL = 24 * time.Hour

// VerifySignature compares the provided hex-encoded HMAC-SHA256 signature
// against one computed over body with the shared secret, in constant time.
// Mandatory outside development configurations (spec §4.6 closing line).
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	if s.sharedSecret == "" {
		if s.developmentMode {
			return nil
		}
		return apierr.WebhookAuth("webhook signature verification is not configured")
	}

	mac := hmac.New(sha256.New, []byte(s.sharedSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	decodedSig, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, decodedSig) {
		return apierr.WebhookAuth("signature mismatch")
	}
	return nil
}

// SignwellPayload is the inbound webhook body shape (spec §4.6): dispatch
// on Event, Document identifies the envelope, CustomFields carries the
// hold_id this envelope was created for.
type SignwellPayload struct {
	Event    string `json:"event"`
	Document struct {
		ID string `json:"id"`
	} `json:"document"`
	CustomFields struct {
		HoldID string `json:"hold_id"`
	} `json:"custom_fields"`
}

// WebhookID derives the idempotency key per spec §4.6's reference
// derivation: "{document_id}:{event_name}".
func (p SignwellPayload) WebhookID() string {
	return fmt.Sprintf("%s:%s", p.Document.ID, p.Event)
}

// ProcessWebhook runs the full §4.6 protocol. Returns the cached response
// body to replay on the idempotent path, or the freshly computed one.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload SignwellPayload) (string, error) {
	webhookID := payload.WebhookID()
	cacheKey := fmt.Sprintf("webhook:%s:%s", signwellProvider, webhookID)

	if cached, hit := s.cache.Get(ctx, cacheKey); hit {
		s.logger.Info("replaying cached webhook response from fast-path cache", "webhook_id", webhookID)
		return cached, nil
	}

	existing, err := s.webhooks.Get(ctx, signwellProvider, webhookID)
	if err != nil {
		return "", apierr.Transient("failed to check processed webhook", err)
	}
	if existing != nil && existing.Status == models.WebhookStatusCompleted {
		s.logger.Info("replaying cached webhook response", "webhook_id", webhookID)
		return existing.CachedResponse, nil
	}

	record := existing
	if record == nil {
		record = &models.ProcessedWebhook{
			Provider:        signwellProvider,
			ExternalEventID: webhookID,
			Status:          models.WebhookStatusProcessing,
		}
		if err := s.webhooks.InsertProcessing(ctx, record); err != nil {
			return "", apierr.Transient("failed to insert processing marker", err)
		}
	}

	response, err := s.dispatch(ctx, payload)
	if err != nil {
		s.logger.Error("webhook handler failed, provider will retry", "webhook_id", webhookID, "error", err)
		if failErr := s.webhooks.Fail(ctx, record.ID); failErr != nil {
			s.logger.Error("failed to mark webhook failed", "webhook_id", webhookID, "error", failErr)
		}
		return "", apierr.Transient("webhook handler failed", err)
	}

	if err := s.webhooks.Complete(ctx, record.ID, response); err != nil {
		return "", apierr.Transient("failed to mark webhook completed", err)
	}
	if err := s.cache.Set(ctx, cacheKey, response, cachedResponseTTL); err != nil {
		s.logger.Warn("failed to populate webhook response cache", "webhook_id", webhookID, "error", err)
	}
	return response, nil
}

func (s *WebhookService) dispatch(ctx context.Context, payload SignwellPayload) (string, error) {
	doc, err := s.documents.GetByHoldID(ctx, payload.CustomFields.HoldID)
	if err != nil {
		return "", fmt.Errorf("failed to load document for hold %s: %w", payload.CustomFields.HoldID, err)
	}
	if doc == nil {
		return "", fmt.Errorf("no document found for hold %s", payload.CustomFields.HoldID)
	}

	var targetStatus models.DocumentStatus
	var eventSubject string
	switch payload.Event {
	case "document_sent":
		targetStatus = models.DocumentStatusSent
		eventSubject = events.NdaSentEvent
	case "document_completed":
		targetStatus = models.DocumentStatusSigned
		eventSubject = events.NdaSignedEvent
	case "document_expired":
		targetStatus = models.DocumentStatusExpired
		eventSubject = events.NdaExpiredEvent
	default:
		return "", fmt.Errorf("unrecognized webhook event %q", payload.Event)
	}

	if !doc.Status.CanAdvanceTo(targetStatus) {
		s.logger.Warn("ignoring out-of-order nda webhook, not a forward transition",
			"document_id", doc.ID, "from_status", doc.Status, "to_status", targetStatus)
		resp, _ := json.Marshal(map[string]any{"status": "ignored", "document_id": doc.ID, "document_status": doc.Status})
		return string(resp), nil
	}

	doc.Status = targetStatus
	now := time.Now().UTC()
	switch targetStatus {
	case models.DocumentStatusSent:
		doc.SentAt = &now
	case models.DocumentStatusSigned:
		doc.SignedAt = &now
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to persist document transition: %w", err)
	}

	if pubErr := s.publisher.Publish(ctx, eventSubject, ndaEventPayload(doc)); pubErr != nil {
		s.logger.Error("failed to publish nda event", "document_id", doc.ID, "subject", eventSubject, "error", pubErr)
	}

	resp, _ := json.Marshal(map[string]any{"status": "ok", "document_id": doc.ID, "document_status": doc.Status})
	return string(resp), nil
}

func ndaEventPayload(d *models.Document) map[string]any {
	return map[string]any{
		"document_id": d.ID,
		"hold_id":     d.HoldID,
		"booking_id":  d.BookingID,
		"status":      d.Status,
		"signed_at":   d.SignedAt,
	}
}

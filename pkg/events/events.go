// Package events is the C4 Event Bus Adapter: a durable, topic-partitioned
// log backed by NATS JetStream. The teacher's pkg/events talked to core
// NATS (fire-and-forget, no retention, no retry discipline); this keeps the
// teacher's Publisher/Subscriber names and NewNullPublisher no-op fallback
// but backs them with JetStream streams, a fixed nak-backoff schedule, and
// dead-letter publication on exhausted redeliveries, grounded on
// bugielektrik-library's pkg/broker/nats/jetstream wrapper.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bookwell/scheduling-core/internal/config"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// Event subjects, grouped by the stream that owns them (spec §4.4).
const (
	SlotHeldEvent         = "slot.held"
	SlotReleasedEvent     = "slot.released"
	BookingConfirmedEvent = "booking.confirmed"
	BookingCanceledEvent  = "booking.canceled"

	NdaCreatedEvent = "nda.created"
	NdaSentEvent    = "nda.sent"
	NdaSignedEvent  = "nda.signed"
	NdaExpiredEvent = "nda.expired"

	NotifyEmailRequestedEvent = "notify.email.requested"
	NotifyEmailSentEvent      = "notify.email.sent"
)

const (
	StreamBookings      = "BOOKINGS"
	StreamDocuments     = "DOCUMENTS"
	StreamNotifications = "NOTIFICATIONS"
	StreamDeadLetter    = "DEAD_LETTER"
)

// backoffSchedule is the nak-delay ladder from spec §4.4, clamped to its
// last entry once a message has been redelivered more times than there are
// entries.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

func backoffFor(deliveryCount uint64) time.Duration {
	idx := int(deliveryCount) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// Envelope is the wire format every event conforms to (spec §4.4): a UUID
// that doubles as the publisher-side dedup id, the discriminator string,
// an instant, and type-specific data.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Connect opens the underlying NATS connection used by both the core
// publish path and JetStream stream/consumer management.
func Connect(cfg config.Bus) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL, nats.ReconnectWait(5*time.Second), nats.MaxReconnects(10))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event bus: %w", err)
	}
	return conn, nil
}

// EnsureStreams creates (or updates) the four streams named in spec §4.4.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	specs := []jetstream.StreamConfig{
		{
			Name:      StreamBookings,
			Subjects:  []string{"slot.held", "slot.released", "booking.confirmed", "booking.canceled"},
			MaxAge:    7 * 24 * time.Hour,
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
		},
		{
			Name:      StreamDocuments,
			Subjects:  []string{"nda.created", "nda.sent", "nda.signed", "nda.expired"},
			MaxAge:    30 * 24 * time.Hour,
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
		},
		{
			Name:      StreamNotifications,
			Subjects:  []string{"notify.email.requested", "notify.email.sent"},
			MaxAge:    24 * time.Hour,
			Retention: jetstream.WorkQueuePolicy,
			Storage:   jetstream.FileStorage,
		},
		{
			Name:      StreamDeadLetter,
			Subjects:  []string{"dlq.>"},
			MaxAge:    90 * 24 * time.Hour,
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
		},
	}
	for _, cfg := range specs {
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			if _, err2 := js.UpdateStream(ctx, cfg); err2 != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// Publisher publishes events onto the durable bus. A nil js (NewNullPublisher)
// degrades every Publish to a logged no-op for development without NATS,
// matching the teacher's main.go optional-collaborator pattern.
type Publisher struct {
	js     jetstream.JetStream
	logger *logger.Logger
}

func NewPublisher(js jetstream.JetStream, log *logger.Logger) *Publisher {
	return &Publisher{js: js, logger: log}
}

func NewNullPublisher(log *logger.Logger) *Publisher {
	return &Publisher{js: nil, logger: log}
}

// Publish wraps data in the §4.4 envelope and publishes it, using the
// envelope's event_id as the JetStream message id for publisher-side
// deduplication within each stream's dedup window.
func (p *Publisher) Publish(ctx context.Context, subject string, data any) error {
	if p.js == nil {
		p.logger.Debug("event publishing skipped (no bus connection)", "subject", subject)
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  subject,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = envBytes
	msg.Header.Set(nats.MsgIdHdr, env.EventID)

	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published event", "subject", subject, "event_id", env.EventID)
	return nil
}

// Handler processes one decoded envelope. Returning an error naks the
// message per the backoff schedule; returning nil acks it.
type Handler func(ctx context.Context, env Envelope) error

// Subscriber manages durable JetStream consumers.
type Subscriber struct {
	js        jetstream.JetStream
	publisher *Publisher
	logger    *logger.Logger
}

func NewSubscriber(js jetstream.JetStream, publisher *Publisher, log *logger.Logger) *Subscriber {
	return &Subscriber{js: js, publisher: publisher, logger: log}
}

// ConsumerOptions configures a durable consumer per spec §4.4's contract
// (filter subjects, max-delivery, ack-wait, deliver-policy).
type ConsumerOptions struct {
	Stream        string
	Durable       string
	FilterSubject string
	MaxDeliver    int
	AckWait       time.Duration
	DeliverPolicy jetstream.DeliverPolicy
}

// Subscribe creates (or attaches to) a durable consumer and dispatches each
// message to handler, applying the nak-backoff schedule on failure and
// publishing a dlq.<subject> entry once redeliveries are exhausted.
func (s *Subscriber) Subscribe(ctx context.Context, opts ConsumerOptions, handler Handler) error {
	if opts.MaxDeliver == 0 {
		opts.MaxDeliver = 5
	}
	if opts.AckWait == 0 {
		opts.AckWait = 30 * time.Second
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, opts.Stream, jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    opts.MaxDeliver,
		AckWait:       opts.AckWait,
		DeliverPolicy: opts.DeliverPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s/%s: %w", opts.Stream, opts.Durable, err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		s.dispatch(ctx, msg, opts, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming %s/%s: %w", opts.Stream, opts.Durable, err)
	}

	s.logger.Info("subscribed", "stream", opts.Stream, "durable", opts.Durable, "subject", opts.FilterSubject)
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, msg jetstream.Msg, opts ConsumerOptions, handler Handler) {
	var env Envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		// Malformed payload: ack to avoid a poison-message loop, per §4.5's
		// "Malformed event payloads are acked... and logged" guidance
		// generalized to every consumer, not just the realtime gateway.
		s.logger.Error("malformed event payload, acking to avoid poison loop", "subject", msg.Subject(), "error", err)
		_ = msg.Ack()
		return
	}

	meta, _ := msg.Metadata()
	var deliveryCount uint64 = 1
	if meta != nil {
		deliveryCount = meta.NumDelivered
	}

	if err := handler(ctx, env); err != nil {
		if deliveryCount >= uint64(opts.MaxDeliver) {
			s.publishDeadLetter(ctx, env, msg.Subject(), err, deliveryCount)
			_ = msg.Ack()
			return
		}
		s.logger.Warn("handler failed, nak with backoff", "subject", msg.Subject(), "event_id", env.EventID, "delivery", deliveryCount, "error", err)
		_ = msg.NakWithDelay(backoffFor(deliveryCount))
		return
	}

	_ = msg.Ack()
}

type deadLetterPayload struct {
	OriginalSubject string    `json:"original_subject"`
	OriginalEvent   Envelope  `json:"original_event"`
	LastError       string    `json:"last_error"`
	Attempts        uint64    `json:"attempts"`
}

func (s *Subscriber) publishDeadLetter(ctx context.Context, env Envelope, subject string, handlerErr error, attempts uint64) {
	dlq := deadLetterPayload{
		OriginalSubject: subject,
		OriginalEvent:   env,
		LastError:       handlerErr.Error(),
		Attempts:        attempts,
	}
	if err := s.publisher.Publish(ctx, "dlq."+subject, dlq); err != nil {
		s.logger.Error("failed to publish dead letter", "subject", subject, "error", err)
	}
}

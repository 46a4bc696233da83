// Package realtime is C5, the Realtime Gateway (spec §4.5). It fans
// out slot.* and booking.* events to subscribed clients over
// server-sent events. The per-subscriber buffered channel plus
// non-blocking fan-out (a slow client drops events rather than stalling
// publishers) is carried over from steveyegge-beads's RPC server
// sseSubscriber/Subscribe; the register/unregister bookkeeping keeps the
// teacher's SubscriptionManager shape but re-keys subscriptions by
// meeting-type ID instead of business ID, and drops gorilla/websocket in
// favor of net/http's http.Flusher (no pack example imports it, and
// plain SSE needs nothing beyond stdlib).
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/bookwell/scheduling-core/pkg/events"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// Frame is one SSE message. Type "connected" is sent immediately on
// subscribe; thereafter Type mirrors the bus event subject (e.g.
// "slot.held", "booking.confirmed"). ID, when set, is the originating
// bus envelope's event_id and becomes the SSE "id:" field.
type Frame struct {
	ID      string
	Type    string
	Payload any
}

type subscriber struct {
	id            string
	meetingTypeID string
	ch            chan Frame
}

// Gateway maintains the set of active SSE subscribers and fans out
// frames to whichever of them are scoped to a given meeting type.
type Gateway struct {
	mu            sync.RWMutex
	subscribers   map[string]*subscriber          // id -> subscriber
	byMeetingType map[string]map[string]*subscriber // meetingTypeID -> id -> subscriber
	logger        *logger.Logger
}

func NewGateway(log *logger.Logger) *Gateway {
	return &Gateway{
		subscribers:   make(map[string]*subscriber),
		byMeetingType: make(map[string]map[string]*subscriber),
		logger:        log,
	}
}

// Subscribe registers a new SSE client scoped to meetingTypeID. It
// returns the frame channel to range over (buffered, so a slow write to
// the underlying ResponseWriter doesn't block publishers) and an
// unsubscribe func the caller must defer.
func (g *Gateway) Subscribe(meetingTypeID string) (<-chan Frame, func()) {
	sub := &subscriber{
		id:            uuid.New().String(),
		meetingTypeID: meetingTypeID,
		ch:            make(chan Frame, 32),
	}

	g.mu.Lock()
	g.subscribers[sub.id] = sub
	if g.byMeetingType[meetingTypeID] == nil {
		g.byMeetingType[meetingTypeID] = make(map[string]*subscriber)
	}
	g.byMeetingType[meetingTypeID][sub.id] = sub
	g.mu.Unlock()

	g.logger.Info("realtime client subscribed", "client_id", sub.id, "meeting_type_id", meetingTypeID)
	sub.ch <- Frame{Type: "connected", Payload: map[string]string{"meeting_type_id": meetingTypeID}}

	unsubscribe := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if _, ok := g.subscribers[sub.id]; !ok {
			return
		}
		delete(g.subscribers, sub.id)
		if set, ok := g.byMeetingType[meetingTypeID]; ok {
			delete(set, sub.id)
			if len(set) == 0 {
				delete(g.byMeetingType, meetingTypeID)
			}
		}
		close(sub.ch)
		g.logger.Info("realtime client unsubscribed", "client_id", sub.id, "meeting_type_id", meetingTypeID)
	}

	return sub.ch, unsubscribe
}

// Broadcast fans eventID/eventType/data out to every subscriber scoped
// to meetingTypeID. Non-blocking per subscriber: a full buffer drops
// the frame for that one client rather than stalling the bus consumer.
func (g *Gateway) Broadcast(meetingTypeID, eventID, eventType string, data any) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.byMeetingType[meetingTypeID]
	if !ok || len(set) == 0 {
		return
	}
	frame := Frame{ID: eventID, Type: eventType, Payload: data}
	for _, sub := range set {
		select {
		case sub.ch <- frame:
		default:
			g.logger.Warn("realtime subscriber buffer full, dropping frame", "client_id", sub.id, "event_type", eventType)
		}
	}
}

// HandleBusEvent adapts a bus envelope into a Broadcast call. It is
// registered as an events.Handler for slot.held, slot.released, and
// booking.confirmed (spec §4.5: the gateway forwards exactly those three
// types, plus its own synthetic "connected" frame). Malformed or
// meeting-type-less payloads are logged and dropped rather than acked
// as failures — there is nothing a redelivery would fix.
func (g *Gateway) HandleBusEvent(eventType string) events.Handler {
	return func(ctx context.Context, env events.Envelope) error {
		var payload struct {
			MeetingTypeID string `json:"meeting_type_id"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.MeetingTypeID == "" {
			g.logger.Warn("dropping bus event with no meeting_type_id", "event_type", eventType)
			return nil
		}
		var rendered map[string]any
		_ = json.Unmarshal(env.Data, &rendered)
		g.Broadcast(payload.MeetingTypeID, env.EventID, eventType, rendered)
		return nil
	}
}

// Marshal renders a Frame as an SSE message: "event:" carries the type,
// "data:" carries only the payload (never the envelope), and "id:" is
// included when the originating bus event had one. Ends with the
// trailing blank line the protocol requires.
func (f Frame) Marshal() ([]byte, error) {
	body, err := json.Marshal(f.Payload)
	if err != nil {
		return nil, err
	}
	var out []byte
	if f.ID != "" {
		out = append(out, []byte("id: "+f.ID+"\n")...)
	}
	out = append(out, []byte("event: "+f.Type+"\ndata: ")...)
	out = append(out, body...)
	out = append(out, '\n', '\n')
	return out, nil
}

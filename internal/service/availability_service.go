// Package service holds the core booking-engine components (C1-C3, C6).
// Structure and logging style follow the teacher's internal/service/service.go
// (explicit step-by-step logging, typed request/response structs); the
// date-math itself is grounded on Ceesaxp-meet-when's
// internal/services/availability.go (host-zone iteration, IANA zone
// handling, min-notice clamping).
package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bookwell/scheduling-core/internal/apierr"
	"github.com/bookwell/scheduling-core/internal/models"
	"github.com/bookwell/scheduling-core/internal/repository"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// DefaultMinLeadTime is spec §4.1's MIN_LEAD; overridable via config for test
// determinism (see config.Hold.MinLeadTime).
const DefaultMinLeadTime = 2 * time.Hour

// Slot is one candidate produced by the Availability Engine.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type AvailabilityService struct {
	meetingTypes *repository.MeetingTypeRepository
	availability *repository.AvailabilityRepository
	minLeadTime  time.Duration
	logger       *logger.Logger
}

func NewAvailabilityService(
	meetingTypes *repository.MeetingTypeRepository,
	availability *repository.AvailabilityRepository,
	minLeadTime time.Duration,
	log *logger.Logger,
) *AvailabilityService {
	if minLeadTime == 0 {
		minLeadTime = DefaultMinLeadTime
	}
	return &AvailabilityService{
		meetingTypes: meetingTypes,
		availability: availability,
		minLeadTime:  minLeadTime,
		logger:       log,
	}
}

// GetMeetingTypeBySlug backs the public "GET /book/{slug}" metadata
// endpoint (spec §6); it is not itself one of the six numbered
// protocol steps but the engine already owns the meeting-type lookup.
func (s *AvailabilityService) GetMeetingTypeBySlug(ctx context.Context, slug string) (*models.MeetingType, error) {
	mt, err := s.meetingTypes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, apierr.Transient("failed to load meeting type", err)
	}
	if mt == nil {
		return nil, apierr.NotFound("meeting type %q not found", slug)
	}
	return mt, nil
}

// GetAvailableSlotsRequest is the C1 contract's input (spec §4.1).
type GetAvailableSlotsRequest struct {
	MeetingTypeID string
	StartDate     time.Time // wall-clock date, host zone
	EndDate       time.Time // wall-clock date, host zone, inclusive
	GuestZone     string    // IANA zone, presentation only
}

// GetAvailableSlots runs the six-step algorithm in spec §4.1. The engine
// never mutates state; it only reads rules, blackouts, and occupancy.
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, req GetAvailableSlotsRequest, now time.Time) ([]Slot, error) {
	mt, err := s.meetingTypes.GetByID(ctx, req.MeetingTypeID)
	if err != nil {
		return nil, apierr.Transient("failed to load meeting type", err)
	}
	if mt == nil || !mt.Active {
		return nil, apierr.NotFound("meeting type %s not found", req.MeetingTypeID)
	}

	hostLoc, err := time.LoadLocation(mt.Timezone)
	if err != nil {
		return nil, apierr.Validation("unknown host timezone %q", mt.Timezone)
	}
	guestLoc := hostLoc
	if req.GuestZone != "" {
		if loc, err := time.LoadLocation(req.GuestZone); err == nil {
			guestLoc = loc
		}
	}

	rules, err := s.availability.GetRulesForOwner(ctx, mt.OwnerID, mt.ID)
	if err != nil {
		return nil, apierr.Transient("failed to load availability rules", err)
	}
	rules = filterRulesByWindow(rules, req.StartDate, req.EndDate)

	blackouts, err := s.availability.GetBlackoutsForOwner(ctx, mt.OwnerID)
	if err != nil {
		return nil, apierr.Transient("failed to load blackout dates", err)
	}

	bufferBefore := time.Duration(mt.BufferBeforeMinutes) * time.Minute
	bufferAfter := time.Duration(mt.BufferAfterMinutes) * time.Minute

	windowFrom := startOfDay(req.StartDate, hostLoc).Add(-bufferBefore)
	windowUntil := startOfDay(req.EndDate, hostLoc).AddDate(0, 0, 1).Add(bufferAfter)

	holds, bookings, err := s.availability.GetOccupancy(ctx, mt.ID, windowFrom, windowUntil)
	if err != nil {
		return nil, apierr.Transient("failed to load occupancy", err)
	}

	var slots []Slot
	duration := time.Duration(mt.DurationMinutes) * time.Minute

	for day := startOfDay(req.StartDate, hostLoc); !day.After(startOfDay(req.EndDate, hostLoc)); day = day.AddDate(0, 0, 1) {
		weekday := int(day.Weekday())
		for _, r := range rules {
			if r.DayOfWeek != weekday {
				continue
			}
			for _, slot := range candidatesForRuleOnDay(day, r, duration, hostLoc) {
				available := s.isAvailable(slot, now, blackouts, holds, bookings, bufferBefore, bufferAfter)
				slots = append(slots, Slot{
					Start:     slot.start.In(guestLoc),
					End:       slot.end.In(guestLoc),
					Available: available,
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

type interval struct {
	start, end time.Time
}

// candidatesForRuleOnDay emits fixed-duration candidates stepping from
// r.StartTime, stopping once a candidate's end would exceed r.EndTime in
// host wall-clock. Iterating per calendar day (not per 24h) and converting
// HH:MM via time.Date in the host location is what makes DST boundaries
// fall out correctly (spec §4.1 edge cases): candidates step by a fixed
// duration on the absolute timeline, so none starts inside a skipped
// spring-forward hour, and a candidate spanning the gap is still emitted
// as long as its end does not pass the zone-aware rule end.
func candidatesForRuleOnDay(day time.Time, r models.AvailabilityRule, duration time.Duration, loc *time.Location) []interval {
	startH, startM, ok1 := parseHHMM(r.StartTime)
	endH, endM, ok2 := parseHHMM(r.EndTime)
	if !ok1 || !ok2 {
		return nil
	}

	y, m, d := day.Date()
	cursor := time.Date(y, m, d, startH, startM, 0, 0, loc)
	ruleEnd := time.Date(y, m, d, endH, endM, 0, 0, loc)

	var out []interval
	for {
		candidateEnd := cursor.Add(duration)
		if candidateEnd.After(ruleEnd) {
			break
		}
		out = append(out, interval{start: cursor, end: candidateEnd})
		cursor = candidateEnd
	}
	return out
}

func (s *AvailabilityService) isAvailable(
	slot interval,
	now time.Time,
	blackouts []models.BlackoutDate,
	holds []models.SlotHold,
	bookings []models.Booking,
	bufferBefore, bufferAfter time.Duration,
) bool {
	// Boundary: strictly later than now+MIN_LEAD, '>' not '>=' (spec §8).
	if !slot.start.After(now.Add(s.minLeadTime)) {
		return false
	}

	for _, b := range blackouts {
		if b.Malformed() {
			continue
		}
		if !b.MatchesDate(slot.start) {
			continue
		}
		if b.IsFullDay() {
			return false
		}
		bh, bm, ok1 := parseHHMM(*b.StartTime)
		eh, em, ok2 := parseHHMM(*b.EndTime)
		if !ok1 || !ok2 {
			continue
		}
		y, m, d := slot.start.Date()
		loc := slot.start.Location()
		bStart := time.Date(y, m, d, bh, bm, 0, 0, loc)
		bEnd := time.Date(y, m, d, eh, em, 0, 0, loc)
		if slot.start.Before(bEnd) && bStart.Before(slot.end) {
			return false
		}
	}

	bufferedStart := slot.start.Add(-bufferBefore)
	bufferedEnd := slot.end.Add(bufferAfter)

	for _, h := range holds {
		if h.Overlaps(bufferedStart, bufferedEnd) {
			return false
		}
	}
	for _, bk := range bookings {
		if bk.Overlaps(bufferedStart, bufferedEnd) {
			return false
		}
	}

	return true
}

func filterRulesByWindow(rules []models.AvailabilityRule, from, until time.Time) []models.AvailabilityRule {
	out := rules[:0:0]
	for _, r := range rules {
		if r.OverlapsWindow(from, until.AddDate(0, 0, 1)) {
			out = append(out, r)
		}
	}
	return out
}

// startOfDay takes t's own calendar date as a host wall-clock date (the
// request's dates arrive as midnight UTC) and returns midnight of that
// date in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func parseHHMM(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return h, m, true
}

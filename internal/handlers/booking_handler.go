package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// BookingHandler serves the public booking flow: meeting-type metadata,
// availability, hold creation/lookup/release, and confirmation (spec §6).
type BookingHandler struct {
	availability *service.AvailabilityService
	holds        *service.HoldService
	bookings     *service.BookingService
	logger       *logger.Logger
}

func NewBookingHandler(
	availability *service.AvailabilityService,
	holds *service.HoldService,
	bookings *service.BookingService,
	log *logger.Logger,
) *BookingHandler {
	return &BookingHandler{availability: availability, holds: holds, bookings: bookings, logger: log}
}

// GetMeetingType handles GET /book/:slug.
func (h *BookingHandler) GetMeetingType(c *gin.Context) {
	slug := c.Param("slug")
	mt, err := h.availability.GetMeetingTypeBySlug(c.Request.Context(), slug)
	if err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, mt)
}

// GetSlots handles GET /book/:slug/slots?startDate&endDate&timezone.
func (h *BookingHandler) GetSlots(c *gin.Context) {
	slug := c.Param("slug")
	mt, err := h.availability.GetMeetingTypeBySlug(c.Request.Context(), slug)
	if err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}

	startDate, err := time.Parse("2006-01-02", c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": "startDate must be YYYY-MM-DD"}})
		return
	}
	endDate, err := time.Parse("2006-01-02", c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": "endDate must be YYYY-MM-DD"}})
		return
	}

	slots, err := h.availability.GetAvailableSlots(c.Request.Context(), service.GetAvailableSlotsRequest{
		MeetingTypeID: mt.ID,
		StartDate:     startDate,
		EndDate:       endDate,
		GuestZone:     c.Query("timezone"),
	}, time.Now().UTC())
	if err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// CreateHoldRequestBody is the POST /book/:slug/hold body (spec §6).
type CreateHoldRequestBody struct {
	SlotStart      time.Time `json:"slotStart" binding:"required"`
	SlotEnd        time.Time `json:"slotEnd" binding:"required"`
	Email          string    `json:"email" binding:"required,email"`
	Name           *string   `json:"name"`
	IdempotencyKey string    `json:"idempotencyKey" binding:"required,uuid"`
}

// CreateHold handles POST /book/:slug/hold.
func (h *BookingHandler) CreateHold(c *gin.Context) {
	slug := c.Param("slug")
	mt, err := h.availability.GetMeetingTypeBySlug(c.Request.Context(), slug)
	if err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}

	var body CreateHoldRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": err.Error()}})
		return
	}
	if !body.SlotEnd.After(body.SlotStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": "slotEnd must be after slotStart"}})
		return
	}

	hold, err := h.holds.CreateHold(c.Request.Context(), service.CreateHoldRequest{
		MeetingTypeID:  mt.ID,
		SlotStart:      body.SlotStart,
		SlotEnd:        body.SlotEnd,
		GuestEmail:     body.Email,
		GuestName:      body.Name,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"holdId":      hold.ID,
		"expiresAt":   hold.ExpiresAt,
		"ndaRequired": mt.RequiresNDA,
	})
}

// GetHold handles GET /book/:slug/hold/:id.
func (h *BookingHandler) GetHold(c *gin.Context) {
	hold, err := h.holds.GetHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, hold)
}

// ReleaseHold handles DELETE /book/:slug/hold/:id.
func (h *BookingHandler) ReleaseHold(c *gin.Context) {
	if err := h.holds.ReleaseHold(c.Request.Context(), c.Param("id")); err != nil {
		writeAPIError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

// ConfirmBookingRequestBody is the POST /book/:slug/confirm body (spec §6).
type ConfirmBookingRequestBody struct {
	HoldID         string `json:"holdId" binding:"required,uuid"`
	GuestName      string `json:"guestName" binding:"required"`
	GuestTimezone  string `json:"guestTimezone" binding:"required"`
	GuestNotes     string `json:"guestNotes"`
	IdempotencyKey string `json:"idempotencyKey" binding:"required,uuid"`
}

// ConfirmBooking handles POST /book/:slug/confirm. SlotUnavailable maps
// to 400 here per spec §7's taxonomy (it is 409 only on create-hold).
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	var body ConfirmBookingRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": err.Error()}})
		return
	}

	booking, err := h.bookings.ConfirmBooking(c.Request.Context(), service.ConfirmBookingRequest{
		HoldID:         body.HoldID,
		GuestName:      body.GuestName,
		GuestTimezone:  body.GuestTimezone,
		GuestNotes:     body.GuestNotes,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		writeAPIError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookwell/scheduling-core/internal/realtime"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// RealtimeHandler serves GET /realtime/slots/:meetingTypeId (spec §4.5,
// §6): one long-lived server-sent-events stream per connected client,
// scoped to a single meeting type.
type RealtimeHandler struct {
	gateway *realtime.Gateway
	logger  *logger.Logger
}

func NewRealtimeHandler(gateway *realtime.Gateway, log *logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{gateway: gateway, logger: log}
}

func (h *RealtimeHandler) StreamSlots(c *gin.Context) {
	meetingTypeID := c.Param("meetingTypeId")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "Transient", "message": "streaming unsupported"}})
		return
	}

	frames, unsubscribe := h.gateway.Subscribe(meetingTypeID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("realtime client disconnected", "meeting_type_id", meetingTypeID)
			return
		case frame, open := <-frames:
			if !open {
				return
			}
			wire, err := frame.Marshal()
			if err != nil {
				h.logger.Error("failed to marshal SSE frame", "error", err)
				continue
			}
			if _, err := c.Writer.Write(wire); err != nil {
				h.logger.Error("failed to write SSE frame, disconnecting", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// Package handlers wires the HTTP surface of spec.md §6 to the core
// services. Structure (small per-concern handler structs, explicit
// step-by-step logging before/after each service call) follows the
// teacher's internal/handlers/handlers.go; error mapping replaces the
// teacher's strings.Contains(err.Error(), ...) sniffing with apierr.Kind
// dispatch.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/apierr"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// HealthHandler backs the liveness/readiness probes.
type HealthHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	js     jetstream.JetStream
	logger *logger.Logger
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, js jetstream.JetStream, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, js: js, logger: log}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "scheduling-core"})
}

// Ready checks the database connection (and redis, when configured) are
// actually reachable, not just constructed.
func (h *HealthHandler) Ready(c *gin.Context) {
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "database unreachable"})
		return
	}
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "redis unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// writeAPIError maps a core component's typed error (spec §7's taxonomy
// table) to an HTTP status and JSON body. slotUnavailableStatus lets
// callers pick between the two different statuses SlotUnavailable maps
// to depending on call site (409 on create-hold, 400 on confirm).
func writeAPIError(c *gin.Context, err error, slotUnavailableStatus int) {
	apiErr, ok := apierr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "Transient", "message": "internal error"}})
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Kind {
	case apierr.KindValidation:
		status = http.StatusBadRequest
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindForbidden:
		status = http.StatusForbidden
	case apierr.KindSlotUnavailable:
		status = slotUnavailableStatus
	case apierr.KindHoldExpired, apierr.KindNdaRequired:
		status = http.StatusBadRequest
	case apierr.KindWebhookAuth:
		status = http.StatusUnauthorized
	case apierr.KindTransient:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": gin.H{"kind": string(apiErr.Kind), "message": apiErr.Message}})
}

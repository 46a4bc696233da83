package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// signwellSignatureHeader is the header the e-signature provider carries
// its HMAC-SHA256 signature in (spec §4.6 step 1).
const signwellSignatureHeader = "X-Signwell-Signature"

// WebhookHandler serves POST /webhooks/signwell (spec §6).
type WebhookHandler struct {
	webhooks *service.WebhookService
	logger   *logger.Logger
}

func NewWebhookHandler(webhooks *service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: log}
}

func (h *WebhookHandler) HandleSignwell(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": "failed to read request body"}})
		return
	}

	if err := h.webhooks.VerifySignature(body, c.GetHeader(signwellSignatureHeader)); err != nil {
		writeAPIError(c, err, http.StatusBadRequest)
		return
	}

	var payload service.SignwellPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "Validation", "message": "malformed webhook payload"}})
		return
	}

	response, err := h.webhooks.ProcessWebhook(c.Request.Context(), payload)
	if err != nil {
		writeAPIError(c, err, http.StatusBadRequest)
		return
	}

	c.Data(http.StatusOK, "application/json", []byte(response))
}

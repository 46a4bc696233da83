// Package client holds outbound HTTP clients to external collaborators.
// SigningClient's shape (timeout'd *http.Client, typed request/response,
// base-URL-absent degrades to a no-op rather than an error) is carried
// over from the teacher's internal/client/notification_client.go.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bookwell/scheduling-core/internal/config"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// SigningClient creates e-signature envelopes with the external provider.
// Creating/sending envelopes is itself out of scope for the core (spec §1:
// "the e-signature provider itself"), but the core still needs to kick off
// signing when a hold on an NDA-gated meeting type is created — this is
// that one outbound call.
type SigningClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	templateID string
	logger     *logger.Logger
}

func NewSigningClient(cfg config.SigningProvider, log *logger.Logger) *SigningClient {
	return &SigningClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		logger:     log,
	}
}

// Configured reports whether provider credentials are present. Absence
// degrades envelope creation to a no-op per spec §6's "Absence of optional
// collaborator credentials... degrades those collaborators to no-ops but
// does not affect the core."
func (c *SigningClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

type CreateEnvelopeRequest struct {
	TemplateID   string `json:"templateId"`
	SignerEmail  string `json:"signerEmail"`
	SignerName   string `json:"signerName"`
	HoldID       string `json:"customFieldHoldId"`
}

type CreateEnvelopeResponse struct {
	EnvelopeID string `json:"envelopeId"`
}

// CreateEnvelope requests a new signing envelope. Returns ("", nil) when
// the provider is unconfigured, so callers can treat it the same as a
// real no-op collaborator rather than a failure.
func (c *SigningClient) CreateEnvelope(ctx context.Context, req CreateEnvelopeRequest) (string, error) {
	if !c.Configured() {
		c.logger.Warn("signing provider not configured, skipping envelope creation", "hold_id", req.HoldID)
		return "", nil
	}
	req.TemplateID = c.templateID

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/envelopes", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build envelope request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request to signing provider failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("signing provider returned status %d", resp.StatusCode)
	}

	var out CreateEnvelopeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode envelope response: %w", err)
	}

	c.logger.Info("created signing envelope", "hold_id", req.HoldID, "envelope_id", out.EnvelopeID)
	return out.EnvelopeID, nil
}

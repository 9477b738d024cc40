package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appreconcile "github.com/subsync/backend/internal/application/reconcile"
	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/interfaces/http/dto"
)

// Signature headers set by the webhook senders
const (
	GatewaySignatureHeader  = "Stripe-Signature"
	CommerceSignatureHeader = "X-WC-Webhook-Signature"
)

// MaxWebhookPayloadSize bounds a webhook body; gateway and commerce
// deliveries are well under it
const MaxWebhookPayloadSize = 65536

// WebhookIngress processes verified webhook deliveries
type WebhookIngress interface {
	IngestGatewayEvent(ctx context.Context, payload []byte, signature string) (*appreconcile.AckDecision, error)
	IngestCommerceEvent(ctx context.Context, payload []byte, signature string) (*appreconcile.AckDecision, error)
}

// WebhookHandler handles the gateway and commerce webhook endpoints.
// These endpoints are called by the senders and authenticate by signature only.
type WebhookHandler struct {
	BaseHandler
	ingress    WebhookIngress
	maxPayload int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingress WebhookIngress) *WebhookHandler {
	return &WebhookHandler{
		ingress:    ingress,
		maxPayload: MaxWebhookPayloadSize,
	}
}

type ingestFunc func(ctx context.Context, payload []byte, signature string) (*appreconcile.AckDecision, error)

// GatewayEvents handles POST /webhooks/gateway-events
func (h *WebhookHandler) GatewayEvents(c *gin.Context) {
	h.handle(c, GatewaySignatureHeader, h.ingress.IngestGatewayEvent)
}

// CommerceEvents handles POST /webhooks/commerce-events
func (h *WebhookHandler) CommerceEvents(c *gin.Context) {
	h.handle(c, CommerceSignatureHeader, h.ingress.IngestCommerceEvent)
}

func (h *WebhookHandler) handle(c *gin.Context, header string, ingest ingestFunc) {
	// Signature verification needs the raw body
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rejectWebhook(c, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		rejectWebhook(c, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if int64(len(payload)) > h.maxPayload {
		rejectWebhook(c, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	// The verifier decides whether an absent header is acceptable
	ack, err := ingest(c.Request.Context(), payload, c.GetHeader(header))
	if err != nil {
		// Internal details stay in the logs
		switch {
		case errors.Is(err, reconcile.ErrVerification):
			rejectWebhook(c, http.StatusUnauthorized, "Webhook signature verification failed")
		case errors.Is(err, reconcile.ErrMalformedPayload):
			rejectWebhook(c, http.StatusBadRequest, "Malformed webhook payload")
		default:
			rejectWebhook(c, http.StatusInternalServerError, "Webhook processing failed")
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewWebhookAckResponse(ack))
}

func rejectWebhook(c *gin.Context, status int, message string) {
	c.JSON(status, dto.WebhookAckResponse{
		Received: false,
		Message:  message,
	})
}

package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// eventEnvelope is the part of a Stripe event the reconciler reads. The rest
// of stripe.Event is left undecoded so unusual events of unhandled types
// still reach the ignore path.
type eventEnvelope struct {
	ID   string           `json:"id"`
	Type stripe.EventType `json:"type"`
	Data *struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// StripeEventVerifier implements reconcile.EventVerifier for Stripe webhooks
type StripeEventVerifier struct {
	secret string
	logger *zap.Logger
}

// NewStripeEventVerifier creates a verifier. An empty secret disables
// signature checking; config validation forbids that in production.
func NewStripeEventVerifier(secret string, logger *zap.Logger) *StripeEventVerifier {
	if secret == "" {
		logger.Warn("Stripe webhook signature verification disabled")
	}
	return &StripeEventVerifier{secret: secret, logger: logger}
}

// ParseEvent verifies the Stripe-Signature header against the raw payload and
// decodes the event envelope.
func (v *StripeEventVerifier) ParseEvent(payload []byte, signature string) (*reconcile.BillingEvent, error) {
	if v.secret != "" {
		if signature == "" {
			return nil, fmt.Errorf("stripe: missing signature header: %w", reconcile.ErrVerification)
		}
		if err := webhook.ValidatePayloadWithTolerance(payload, signature, v.secret, webhook.DefaultTolerance); err != nil {
			v.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
			return nil, fmt.Errorf("stripe: %w", errors.Join(reconcile.ErrVerification, err))
		}
	}

	var event eventEnvelope
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: failed to parse event: %w", errors.Join(reconcile.ErrMalformedPayload, err))
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("stripe: event id and type are required: %w", reconcile.ErrMalformedPayload)
	}

	out := &reconcile.BillingEvent{
		ID:   event.ID,
		Type: reconcile.EventType(event.Type),
	}
	if event.Data != nil && len(event.Data.Object) > 0 {
		out.Object = event.Data.Object
	}
	return out, nil
}

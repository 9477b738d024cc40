package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// SignatureHeader carries base64(HMAC-SHA256(secret, body)) on every delivery
const SignatureHeader = "X-WC-Webhook-Signature"

// ErrWebhookSecretRequired is returned when the verifier is built without a secret
var ErrWebhookSecretRequired = errors.New("woocommerce: webhook secret is required")

// WebhookVerifier implements reconcile.CommerceEventVerifier for WooCommerce deliveries
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier creates a verifier for the given shared secret
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, ErrWebhookSecretRequired
	}
	return &WebhookVerifier{secret: []byte(secret)}, nil
}

// Sign returns the signature WooCommerce would send for payload
func (v *WebhookVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the raw payload in constant time
func (v *WebhookVerifier) Verify(payload []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("woocommerce: missing %s header: %w", SignatureHeader, reconcile.ErrVerification)
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("woocommerce: signature is not base64: %w", reconcile.ErrVerification)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("woocommerce: signature mismatch: %w", reconcile.ErrVerification)
	}
	return nil
}

// ParseSubscriptionEvent verifies the delivery and decodes the subscription body.
// Bodies that are not JSON, such as the webhook_id=N ping sent when a hook is
// created, yield ErrMalformedPayload.
func (v *WebhookVerifier) ParseSubscriptionEvent(payload []byte, signature string) (*reconcile.Subscription, error) {
	if err := v.Verify(payload, signature); err != nil {
		return nil, err
	}

	var sub WooSubscription
	if err := json.Unmarshal(payload, &sub); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to parse webhook body: %w", errors.Join(reconcile.ErrMalformedPayload, err))
	}
	return sub.toDomain(), nil
}

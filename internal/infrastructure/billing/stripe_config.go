package billing

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
)

// Stripe configuration errors
var (
	ErrStripeSecretKeyRequired = errors.New("stripe: secret key is required")
	ErrStripeInvalidSecretKey  = errors.New("stripe: secret key must be a secret (sk_) or restricted (rk_) key")
	ErrStripeInvalidTimeout    = errors.New("stripe: timeout must be positive")
)

// StripeConfig holds configuration for the Stripe gateway
type StripeConfig struct {
	// SecretKey is the Stripe API key (sk_test_xxx, sk_live_xxx or rk_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// WebhookSecret verifies the Stripe-Signature header. Empty disables verification.
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	// APIBase overrides the API endpoint (stripe-mock, proxies)
	APIBase string `json:"api_base" mapstructure:"api_base"`

	// TimeoutSeconds bounds every outbound call
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// DefaultStripeConfig returns a default configuration
func DefaultStripeConfig() *StripeConfig {
	return &StripeConfig{
		TimeoutSeconds: 10,
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return ErrStripeSecretKeyRequired
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return ErrStripeInvalidSecretKey
	}
	if c.TimeoutSeconds <= 0 {
		return ErrStripeInvalidTimeout
	}
	return nil
}

// VerificationEnabled reports whether webhook signatures are checked
func (c *StripeConfig) VerificationEnabled() bool {
	return c.WebhookSecret != ""
}

// NewBackend builds an API backend with the configured timeout and no
// client-side retries; redelivery is left to the webhook sender.
func (c *StripeConfig) NewBackend() stripe.Backend {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: time.Duration(c.TimeoutSeconds) * time.Second},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if c.APIBase != "" {
		cfg.URL = stripe.String(c.APIBase)
	}
	return stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
}

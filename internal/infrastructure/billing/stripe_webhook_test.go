package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

const testWebhookSecret = "whsec_test_secret"

const invoicePaidPayload = `{
  "id": "evt_1",
  "object": "event",
  "type": "invoice.paid",
  "data": {"object": {"id": "in_1", "billing_reason": "subscription_cycle", "metadata": {"subscription_id": "S1"}}}
}`

func sign(t *testing.T, payload string, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

func TestStripeEventVerifier_ValidSignature(t *testing.T) {
	v := NewStripeEventVerifier(testWebhookSecret, zap.NewNop())

	event, err := v.ParseEvent([]byte(invoicePaidPayload), sign(t, invoicePaidPayload, testWebhookSecret))

	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, reconcile.EventInvoicePaid, event.Type)
	assert.JSONEq(t, `{"id": "in_1", "billing_reason": "subscription_cycle", "metadata": {"subscription_id": "S1"}}`, string(event.Object))
}

func TestStripeEventVerifier_WrongSecret(t *testing.T) {
	v := NewStripeEventVerifier(testWebhookSecret, zap.NewNop())

	_, err := v.ParseEvent([]byte(invoicePaidPayload), sign(t, invoicePaidPayload, "whsec_other"))

	assert.ErrorIs(t, err, reconcile.ErrVerification)
}

func TestStripeEventVerifier_MissingSignature(t *testing.T) {
	v := NewStripeEventVerifier(testWebhookSecret, zap.NewNop())

	_, err := v.ParseEvent([]byte(invoicePaidPayload), "")

	assert.ErrorIs(t, err, reconcile.ErrVerification)
}

func TestStripeEventVerifier_TamperedBody(t *testing.T) {
	v := NewStripeEventVerifier(testWebhookSecret, zap.NewNop())
	header := sign(t, invoicePaidPayload, testWebhookSecret)

	_, err := v.ParseEvent([]byte(`{"id":"evt_2","type":"invoice.paid"}`), header)

	assert.ErrorIs(t, err, reconcile.ErrVerification)
}

func TestStripeEventVerifier_SignedButUnparsable(t *testing.T) {
	v := NewStripeEventVerifier(testWebhookSecret, zap.NewNop())
	body := `{not json`

	_, err := v.ParseEvent([]byte(body), sign(t, body, testWebhookSecret))

	assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	assert.NotErrorIs(t, err, reconcile.ErrVerification)
}

func TestStripeEventVerifier_VerificationDisabled(t *testing.T) {
	v := NewStripeEventVerifier("", zap.NewNop())

	t.Run("parses without a signature", func(t *testing.T) {
		event, err := v.ParseEvent([]byte(invoicePaidPayload), "")
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
	})

	t.Run("rejects unparsable json", func(t *testing.T) {
		_, err := v.ParseEvent([]byte(`garbage`), "")
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})

	t.Run("rejects envelope without id", func(t *testing.T) {
		_, err := v.ParseEvent([]byte(`{"type":"invoice.paid","data":{"object":{}}}`), "")
		assert.ErrorIs(t, err, reconcile.ErrMalformedPayload)
	})

	t.Run("event without data has empty object", func(t *testing.T) {
		event, err := v.ParseEvent([]byte(`{"id":"evt_3","type":"ping"}`), "")
		require.NoError(t, err)
		assert.Empty(t, event.Object)
	})
}

func TestStripeEventVerifier_LenientEnvelope(t *testing.T) {
	v := NewStripeEventVerifier(testWebhookSecret, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"empty data", `{"id":"evt_a","type":"some.unknown","data":{}}`},
		{"null data", `{"id":"evt_b","type":"some.unknown","data":null}`},
		{"legacy string request", `{"id":"evt_c","type":"some.unknown","request":"req_1","data":{"object":{"id":"x"}}}`},
		{"extra fields", `{"id":"evt_d","type":"some.unknown","livemode":false,"pending_webhooks":"two","data":{"object":{},"previous_attributes":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := v.ParseEvent([]byte(tt.body), sign(t, tt.body, testWebhookSecret))
			require.NoError(t, err)
			assert.Equal(t, reconcile.EventType("some.unknown"), event.Type)
			assert.NotEmpty(t, event.ID)
		})
	}
}

package reconcile

import "context"

// GatewaySubscription is the payment gateway's view of a subscription
type GatewaySubscription struct {
	ID       string
	Status   string
	Paused   bool
	Metadata map[string]string
}

// PaymentGateway is the outbound command surface of the payment gateway.
// Implementations return an error wrapping ErrNotFound when the subscription
// does not exist.
type PaymentGateway interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	PauseSubscription(ctx context.Context, subscriptionID string) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error
}

// EventVerifier authenticates and parses a raw gateway webhook delivery
type EventVerifier interface {
	ParseEvent(payload []byte, signature string) (*BillingEvent, error)
}

package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MetaKeyGatewaySubscriptionID is the commerce meta_data key that links a
// commerce subscription to its gateway subscription
const MetaKeyGatewaySubscriptionID = "stripe_subscription_id"

// MetaData is a key/value entry attached to a commerce record
type MetaData struct {
	ID    int64  `json:"id,omitempty"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Order is a commerce platform order
type Order struct {
	ID          string
	ParentID    string
	Status      OrderStatus
	Total       decimal.Decimal
	Currency    string
	DateCreated time.Time
}

// Subscription is the commerce-side record of a subscription
type Subscription struct {
	ID              string
	ParentID        string
	Status          SubscriptionStatus
	BillingEmail    string
	NextPaymentDate string
	MetaData        []MetaData
}

// GatewaySubscriptionID returns the cross-referenced gateway subscription id, if any
func (s *Subscription) GatewaySubscriptionID() string {
	return LookupMeta(s.MetaData, MetaKeyGatewaySubscriptionID)
}

// LookupMeta returns the string value of the first entry with the given key
func LookupMeta(entries []MetaData, key string) string {
	for _, m := range entries {
		if m.Key != key {
			continue
		}
		if v, ok := m.Value.(string); ok {
			return v
		}
	}
	return ""
}

// SubscriptionUpdate is an absolute status write for a commerce subscription
type SubscriptionUpdate struct {
	Status   SubscriptionStatus
	MetaData []MetaData
}

// WithGatewaySubscriptionID returns an update stamping the gateway cross-reference
func WithGatewaySubscriptionID(status SubscriptionStatus, gatewayID string) SubscriptionUpdate {
	return SubscriptionUpdate{
		Status:   status,
		MetaData: []MetaData{{Key: MetaKeyGatewaySubscriptionID, Value: gatewayID}},
	}
}

// CommercePlatform is the outbound command surface of the commerce platform
type CommercePlatform interface {
	// GetSubscription fetches a single subscription
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// GetSubscriptionOrders returns all orders linked to a subscription, newest first
	GetSubscriptionOrders(ctx context.Context, subscriptionID string) ([]Order, error)

	// GetOrder fetches a single order
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ListSubscriptionsByParent returns the subscriptions created from a parent order
	ListSubscriptionsByParent(ctx context.Context, orderID string) ([]Subscription, error)

	// UpdateOrderStatus sets an order's status
	UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) error

	// UpdateSubscriptionStatus sets a subscription's status and optional metadata
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, update SubscriptionUpdate) error
}

// CommerceEventVerifier authenticates a raw commerce webhook delivery and
// decodes the subscription it carries
type CommerceEventVerifier interface {
	ParseSubscriptionEvent(payload []byte, signature string) (*Subscription, error)
}

package reconcile

import "encoding/json"

// EventType is the gateway's event type string
type EventType string

// Gateway event types with a forward mapping
const (
	EventCheckoutSessionCompleted    EventType = "checkout.session.completed"
	EventPaymentIntentSucceeded      EventType = "payment_intent.succeeded"
	EventInvoicePaymentSucceeded     EventType = "invoice.payment_succeeded"
	EventInvoicePaid                 EventType = "invoice.paid"
	EventInvoicePaymentFailed        EventType = "invoice.payment_failed"
	EventCustomerSubscriptionUpdated EventType = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted EventType = "customer.subscription.deleted"
)

// Invoice billing reasons
const (
	BillingReasonSubscriptionCycle  = "subscription_cycle"
	BillingReasonSubscriptionUpdate = "subscription_update"
	BillingReasonSubscriptionCreate = "subscription_create"
)

// BillingEvent is an immutable notification received from the payment gateway.
// Object holds the raw data.object payload; reconcilers decode it into a typed
// schema for the event type.
type BillingEvent struct {
	ID     string
	Type   EventType
	Object json.RawMessage
}

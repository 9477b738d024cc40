package reconcile

// OrderStatus is the status of an order on the commerce platform
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// String returns the wire value
func (s OrderStatus) String() string {
	return string(s)
}

// SubscriptionStatus is the status of a subscription on the commerce platform.
// Gateway statuses are passed through unchanged on subscription updates, so
// values outside the constants below are legal.
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusOnHold     SubscriptionStatus = "on-hold"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled"
)

// String returns the wire value
func (s SubscriptionStatus) String() string {
	return string(s)
}

// GatewayStatusCanceled is the gateway's spelling of a terminated subscription
const GatewayStatusCanceled = "canceled"

// AuditAction identifies the kind of state change recorded in the audit log
type AuditAction string

const (
	AuditActionOrderUpdated        AuditAction = "order_updated"
	AuditActionSubscriptionUpdated AuditAction = "subscription_updated"
	AuditActionRenewalOrderUpdated AuditAction = "renewal_order_updated"
)

// IsValid reports whether the action belongs to the recorded set
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionOrderUpdated, AuditActionSubscriptionUpdated, AuditActionRenewalOrderUpdated:
		return true
	}
	return false
}

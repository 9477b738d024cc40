package dto

import (
	"time"

	appreconcile "github.com/subsync/backend/internal/application/reconcile"
	"github.com/subsync/backend/internal/domain/reconcile"
)

// SubscriptionResponse is a commerce subscription as shown to admins
type SubscriptionResponse struct {
	ID                   string `json:"id"`
	Status               string `json:"status"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	NextPaymentDate      string `json:"next_payment_date"`
}

// OrderResponse is a commerce order as shown to admins
type OrderResponse struct {
	ID          string     `json:"id"`
	ParentID    string     `json:"parent_id,omitempty"`
	Status      string     `json:"status"`
	Total       string     `json:"total"`
	Currency    string     `json:"currency,omitempty"`
	DateCreated *time.Time `json:"date_created,omitempty"`
}

// OrderDetailsResponse is an order with the subscriptions created from it
type OrderDetailsResponse struct {
	Order         OrderResponse          `json:"order"`
	Subscriptions []SubscriptionResponse `json:"subscriptions"`
}

// CancellationResponse reports a completed cancellation
type CancellationResponse struct {
	SubscriptionID       string `json:"subscription_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	Status               string `json:"status"`
}

// NewSubscriptionResponse maps a commerce subscription
func NewSubscriptionResponse(s reconcile.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                   s.ID,
		Status:               s.Status.String(),
		StripeSubscriptionID: s.GatewaySubscriptionID(),
		NextPaymentDate:      s.NextPaymentDate,
	}
}

// NewOrderResponse maps a commerce order
func NewOrderResponse(o reconcile.Order) OrderResponse {
	resp := OrderResponse{
		ID:       o.ID,
		ParentID: o.ParentID,
		Status:   o.Status.String(),
		Total:    o.Total.StringFixed(2),
		Currency: o.Currency,
	}
	if !o.DateCreated.IsZero() {
		created := o.DateCreated.UTC()
		resp.DateCreated = &created
	}
	return resp
}

// NewOrderDetailsResponse maps an order details lookup
func NewOrderDetailsResponse(d *appreconcile.OrderDetails) OrderDetailsResponse {
	subs := make([]SubscriptionResponse, 0, len(d.Subscriptions))
	for _, s := range d.Subscriptions {
		subs = append(subs, NewSubscriptionResponse(s))
	}
	return OrderDetailsResponse{
		Order:         NewOrderResponse(d.Order),
		Subscriptions: subs,
	}
}

// NewCancellationResponse maps a cancellation result
func NewCancellationResponse(r *appreconcile.CancellationResult) CancellationResponse {
	return CancellationResponse{
		SubscriptionID:       r.SubscriptionID,
		StripeSubscriptionID: r.GatewaySubscriptionID,
		Status:               r.Status,
	}
}

package reconcile

import (
	"context"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// OrderDetails is an order together with the subscriptions it created
type OrderDetails struct {
	Order         reconcile.Order
	Subscriptions []reconcile.Subscription
}

// OrderDetailsService reads order details from the commerce platform
type OrderDetailsService struct {
	commerce reconcile.CommercePlatform
}

// NewOrderDetailsService creates a new OrderDetailsService
func NewOrderDetailsService(commerce reconcile.CommercePlatform) *OrderDetailsService {
	return &OrderDetailsService{commerce: commerce}
}

// GetOrderDetails fetches the order and the subscriptions whose parent it is
func (s *OrderDetailsService) GetOrderDetails(ctx context.Context, orderID string) (*OrderDetails, error) {
	order, err := s.commerce.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	subs, err := s.commerce.ListSubscriptionsByParent(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{Order: *order, Subscriptions: subs}, nil
}

package reconcile

import (
	"context"
	"sort"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// RenewalOrderLocator finds the order that represents a subscription's next
// pending renewal
type RenewalOrderLocator struct {
	commerce reconcile.CommercePlatform
}

// NewRenewalOrderLocator creates a new RenewalOrderLocator
func NewRenewalOrderLocator(commerce reconcile.CommercePlatform) *RenewalOrderLocator {
	return &RenewalOrderLocator{commerce: commerce}
}

// FindPendingRenewal returns the most recently created order of the
// subscription whose status is exactly pending. found is false when no such
// order exists; that is not an error.
func (l *RenewalOrderLocator) FindPendingRenewal(ctx context.Context, subscriptionID string) (order reconcile.Order, found bool, err error) {
	orders, err := l.commerce.GetSubscriptionOrders(ctx, subscriptionID)
	if err != nil {
		return reconcile.Order{}, false, err
	}

	// The API sorts by date already; re-sort so the choice does not depend on it
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].DateCreated.After(orders[j].DateCreated)
	})

	for _, o := range orders {
		if o.Status == reconcile.OrderStatusPending {
			return o, true, nil
		}
	}
	return reconcile.Order{}, false, nil
}

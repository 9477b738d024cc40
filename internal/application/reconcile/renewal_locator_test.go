package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/subsync/backend/internal/domain/reconcile"
)

func TestRenewalOrderLocator_FindPendingRenewal(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)

	t.Run("newest pending order wins", func(t *testing.T) {
		commerce := new(MockCommercePlatform)
		commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{
			{ID: "1", Status: reconcile.OrderStatusCompleted, DateCreated: t1},
			{ID: "2", Status: reconcile.OrderStatusPending, DateCreated: t3},
			{ID: "3", Status: reconcile.OrderStatusPending, DateCreated: t2},
		}, nil)

		order, found, err := NewRenewalOrderLocator(commerce).FindPendingRenewal(context.Background(), "S1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "2", order.ID)
	})

	t.Run("newer non-pending orders are skipped", func(t *testing.T) {
		commerce := new(MockCommercePlatform)
		commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{
			{ID: "4", Status: reconcile.OrderStatusProcessing, DateCreated: t3},
			{ID: "3", Status: reconcile.OrderStatusPending, DateCreated: t2},
		}, nil)

		order, found, err := NewRenewalOrderLocator(commerce).FindPendingRenewal(context.Background(), "S1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "3", order.ID)
	})

	t.Run("status match is exact", func(t *testing.T) {
		commerce := new(MockCommercePlatform)
		commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{
			{ID: "1", Status: reconcile.OrderStatus("Pending"), DateCreated: t1},
			{ID: "2", Status: reconcile.OrderStatus("pending-payment"), DateCreated: t2},
		}, nil)

		_, found, err := NewRenewalOrderLocator(commerce).FindPendingRenewal(context.Background(), "S1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("no orders", func(t *testing.T) {
		commerce := new(MockCommercePlatform)
		commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{}, nil)

		_, found, err := NewRenewalOrderLocator(commerce).FindPendingRenewal(context.Background(), "S1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("lookup error is returned", func(t *testing.T) {
		commerce := new(MockCommercePlatform)
		lookupErr := errors.New("boom")
		commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return(nil, lookupErr)

		_, found, err := NewRenewalOrderLocator(commerce).FindPendingRenewal(context.Background(), "S1")
		assert.ErrorIs(t, err, lookupErr)
		assert.False(t, found)
	})
}

package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_GatewaySubscriptionID(t *testing.T) {
	t.Run("reads the cross-reference entry", func(t *testing.T) {
		sub := &Subscription{
			ID: "S1",
			MetaData: []MetaData{
				{Key: "_some_plugin_flag", Value: "yes"},
				{Key: MetaKeyGatewaySubscriptionID, Value: "sub_123"},
			},
		}
		assert.Equal(t, "sub_123", sub.GatewaySubscriptionID())
	})

	t.Run("empty when absent", func(t *testing.T) {
		sub := &Subscription{ID: "S1"}
		assert.Empty(t, sub.GatewaySubscriptionID())
	})

	t.Run("ignores non-string values", func(t *testing.T) {
		sub := &Subscription{
			MetaData: []MetaData{{Key: MetaKeyGatewaySubscriptionID, Value: float64(42)}},
		}
		assert.Empty(t, sub.GatewaySubscriptionID())
	})
}

func TestWithGatewaySubscriptionID(t *testing.T) {
	update := WithGatewaySubscriptionID(SubscriptionStatusActive, "sub_9")

	assert.Equal(t, SubscriptionStatusActive, update.Status)
	assert.Equal(t, []MetaData{{Key: "stripe_subscription_id", Value: "sub_9"}}, update.MetaData)
}

func TestAuditAction_IsValid(t *testing.T) {
	for _, a := range []AuditAction{AuditActionOrderUpdated, AuditActionSubscriptionUpdated, AuditActionRenewalOrderUpdated} {
		assert.True(t, a.IsValid(), a)
	}
	assert.False(t, AuditAction("order_deleted").IsValid())
	assert.False(t, AuditAction("").IsValid())
}

func TestResults_Err(t *testing.T) {
	t.Run("nil when every call succeeded", func(t *testing.T) {
		rs := Results{
			NewCallResult(TargetCommerce, "update_order", "1", nil),
			NewCallResult(TargetCommerce, "update_subscription", "2", nil),
		}
		assert.NoError(t, rs.Err())
		assert.Empty(t, rs.Failed())
	})

	t.Run("wraps upstream and each cause", func(t *testing.T) {
		cause := fmt.Errorf("boom: %w", ErrNotFound)
		rs := Results{
			NewCallResult(TargetCommerce, "update_order", "1", nil),
			NewCallResult(TargetGateway, "cancel_subscription", "sub_1", cause),
		}

		err := rs.Err()
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrUpstream))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "gateway.cancel_subscription(sub_1)")
		assert.Len(t, rs.Failed(), 1)
		assert.True(t, rs.Failed()[0].NotFound())
	})
}

func TestCallResult_String(t *testing.T) {
	ok := NewCallResult(TargetCommerce, "update_order", "7", nil)
	assert.Equal(t, "commerce.update_order(7): ok", ok.String())

	failed := NewCallResult(TargetCommerce, "update_order", "7", errors.New("timeout"))
	assert.Equal(t, "commerce.update_order(7): timeout", failed.String())
}

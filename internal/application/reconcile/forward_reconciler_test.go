package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

func newForwardFixture() (*ForwardReconciler, *MockCommercePlatform, *recordedAudit) {
	commerce := new(MockCommercePlatform)
	audit := &recordedAudit{}
	r := NewForwardReconciler(ForwardReconcilerConfig{
		Commerce: commerce,
		Audit:    audit,
		Logger:   zap.NewNop(),
	})
	return r, commerce, audit
}

func billingEvent(eventType reconcile.EventType, object string) *reconcile.BillingEvent {
	return &reconcile.BillingEvent{
		ID:     "evt_" + string(eventType),
		Type:   eventType,
		Object: []byte(object),
	}
}

func statusUpdate(status reconcile.SubscriptionStatus) reconcile.SubscriptionUpdate {
	return reconcile.SubscriptionUpdate{Status: status}
}

// ---------------------------------------------------------------------------
// checkout.session.completed
// ---------------------------------------------------------------------------

func TestForwardReconciler_CheckoutCompleted(t *testing.T) {
	t.Run("order and linked subscription", func(t *testing.T) {
		r, commerce, audit := newForwardFixture()
		commerce.On("UpdateOrderStatus", mock.Anything, "101", reconcile.OrderStatusProcessing).Return(nil)
		commerce.On("UpdateSubscriptionStatus", mock.Anything, "202",
			reconcile.WithGatewaySubscriptionID(reconcile.SubscriptionStatusActive, "sub_1")).Return(nil)

		result := r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted,
			`{"id":"cs_1","subscription":"sub_1","metadata":{"order_id":"101","subscription_id":"202"}}`))

		assert.True(t, result.Handled)
		assert.Len(t, result.Calls, 2)
		assert.NoError(t, result.Calls.Err())
		commerce.AssertExpectations(t)
		assert.Equal(t, []reconcile.AuditAction{
			reconcile.AuditActionOrderUpdated,
			reconcile.AuditActionSubscriptionUpdated,
		}, audit.actions())
		assert.Equal(t, "sub_1", audit.entries[1].Details["stripe_subscription_id"])
	})

	t.Run("falls back to client reference id", func(t *testing.T) {
		r, commerce, audit := newForwardFixture()
		commerce.On("UpdateOrderStatus", mock.Anything, "55", reconcile.OrderStatusProcessing).Return(nil)

		result := r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted,
			`{"id":"cs_1","client_reference_id":"55","subscription":null,"metadata":{}}`))

		assert.True(t, result.Handled)
		commerce.AssertExpectations(t)
		commerce.AssertNumberOfCalls(t, "UpdateSubscriptionStatus", 0)
		assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionOrderUpdated}, audit.actions())
	})

	t.Run("expanded subscription object", func(t *testing.T) {
		r, commerce, _ := newForwardFixture()
		commerce.On("UpdateOrderStatus", mock.Anything, "101", reconcile.OrderStatusProcessing).Return(nil)
		commerce.On("UpdateSubscriptionStatus", mock.Anything, "202",
			reconcile.WithGatewaySubscriptionID(reconcile.SubscriptionStatusActive, "sub_x")).Return(nil)

		r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted,
			`{"subscription":{"id":"sub_x","object":"subscription"},"metadata":{"order_id":"101","subscription_id":"202"}}`))

		commerce.AssertExpectations(t)
	})

	t.Run("commerce subscription id without gateway id updates order only", func(t *testing.T) {
		r, commerce, _ := newForwardFixture()
		commerce.On("UpdateOrderStatus", mock.Anything, "101", reconcile.OrderStatusProcessing).Return(nil)

		r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted,
			`{"metadata":{"order_id":"101","subscription_id":"202"}}`))

		commerce.AssertNumberOfCalls(t, "UpdateSubscriptionStatus", 0)
	})

	t.Run("order failure does not block subscription update", func(t *testing.T) {
		r, commerce, audit := newForwardFixture()
		commerce.On("UpdateOrderStatus", mock.Anything, "101", reconcile.OrderStatusProcessing).
			Return(fmt.Errorf("timeout: %w", reconcile.ErrUpstream))
		commerce.On("UpdateSubscriptionStatus", mock.Anything, "202", mock.Anything).Return(nil)

		result := r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted,
			`{"subscription":"sub_1","metadata":{"order_id":"101","subscription_id":"202"}}`))

		assert.True(t, result.Handled)
		require.Len(t, result.Calls, 2)
		assert.False(t, result.Calls[0].OK())
		assert.True(t, result.Calls[1].OK())
		assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
	})

	t.Run("no order id is a no-op", func(t *testing.T) {
		r, commerce, audit := newForwardFixture()

		result := r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted,
			`{"id":"cs_1","metadata":{"subscription_id":"202"},"subscription":"sub_1"}`))

		assert.False(t, result.Handled)
		assert.Contains(t, result.Reason, "order_id")
		commerce.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
		commerce.AssertNotCalled(t, "UpdateSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, audit.actions())
	})
}

// ---------------------------------------------------------------------------
// payment_intent.succeeded
// ---------------------------------------------------------------------------

func TestForwardReconciler_PaymentSucceeded(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateOrderStatus", mock.Anything, "7", reconcile.OrderStatusCompleted).Return(nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventPaymentIntentSucceeded,
		`{"id":"pi_1","metadata":{"order_id":"7"}}`))

	assert.True(t, result.Handled)
	commerce.AssertExpectations(t)
	commerce.AssertNumberOfCalls(t, "UpdateOrderStatus", 1)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionOrderUpdated}, audit.actions())
	assert.Equal(t, "completed", audit.entries[0].Details["status"])
}

func TestForwardReconciler_PaymentSucceeded_NoOrderID(t *testing.T) {
	r, commerce, audit := newForwardFixture()

	result := r.Handle(context.Background(), billingEvent(reconcile.EventPaymentIntentSucceeded, `{"id":"pi_1"}`))

	assert.False(t, result.Handled)
	assert.Empty(t, commerce.Calls)
	assert.Empty(t, audit.actions())
}

// ---------------------------------------------------------------------------
// invoice.payment_succeeded / invoice.paid
// ---------------------------------------------------------------------------

func TestForwardReconciler_InvoicePaid_Cycle(t *testing.T) {
	for _, eventType := range []reconcile.EventType{reconcile.EventInvoicePaymentSucceeded, reconcile.EventInvoicePaid} {
		for _, reason := range []string{reconcile.BillingReasonSubscriptionCycle, reconcile.BillingReasonSubscriptionUpdate} {
			t.Run(string(eventType)+"/"+reason, func(t *testing.T) {
				r, commerce, audit := newForwardFixture()
				now := time.Now()
				commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", statusUpdate(reconcile.SubscriptionStatusActive)).Return(nil)
				commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{
					{ID: "O9", Status: reconcile.OrderStatusPending, DateCreated: now},
					{ID: "O3", Status: reconcile.OrderStatusCompleted, DateCreated: now.Add(-30 * 24 * time.Hour)},
				}, nil)
				commerce.On("UpdateOrderStatus", mock.Anything, "O9", reconcile.OrderStatusProcessing).Return(nil)

				result := r.Handle(context.Background(), billingEvent(eventType,
					`{"id":"in_1","billing_reason":"`+reason+`","parent":{"subscription_details":{"metadata":{"subscription_id":"S1"}}}}`))

				assert.True(t, result.Handled)
				assert.NoError(t, result.Calls.Err())
				commerce.AssertExpectations(t)
				assert.Equal(t, []reconcile.AuditAction{
					reconcile.AuditActionSubscriptionUpdated,
					reconcile.AuditActionRenewalOrderUpdated,
				}, audit.actions())
			})
		}
	}
}

func TestForwardReconciler_InvoicePaid_NoPendingRenewal(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", statusUpdate(reconcile.SubscriptionStatusActive)).Return(nil)
	commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{
		{ID: "O3", Status: reconcile.OrderStatusCompleted},
	}, nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaid,
		`{"billing_reason":"subscription_cycle","metadata":{"subscription_id":"S1"}}`))

	assert.True(t, result.Handled)
	commerce.AssertNumberOfCalls(t, "UpdateOrderStatus", 0)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
}

func TestForwardReconciler_InvoicePaid_SubscriptionFailureStillAdvancesOrder(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", mock.Anything).Return(reconcile.ErrUpstream)
	commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return([]reconcile.Order{
		{ID: "O9", Status: reconcile.OrderStatusPending},
	}, nil)
	commerce.On("UpdateOrderStatus", mock.Anything, "O9", reconcile.OrderStatusProcessing).Return(nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaid,
		`{"billing_reason":"subscription_cycle","subscription_details":{"metadata":{"subscription_id":"S1"}}}`))

	assert.True(t, result.Handled)
	assert.Len(t, result.Calls.Failed(), 1)
	commerce.AssertExpectations(t)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionRenewalOrderUpdated}, audit.actions())
}

func TestForwardReconciler_InvoicePaid_LocatorFailure(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", mock.Anything).Return(nil)
	commerce.On("GetSubscriptionOrders", mock.Anything, "S1").Return(nil, errors.New("connection reset"))

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaid,
		`{"billing_reason":"subscription_update","metadata":{"subscription_id":"S1"}}`))

	assert.True(t, result.Handled)
	require.Len(t, result.Calls, 2)
	assert.Equal(t, opListSubscriptionOrders, result.Calls[1].Operation)
	assert.False(t, result.Calls[1].OK())
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
}

func TestForwardReconciler_InvoicePaid_Create(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", statusUpdate(reconcile.SubscriptionStatusActive)).Return(nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaymentSucceeded,
		`{"billing_reason":"subscription_create","parent":{"subscription_details":{"metadata":{"subscription_id":"S1"}}}}`))

	assert.True(t, result.Handled)
	commerce.AssertExpectations(t)
	commerce.AssertNotCalled(t, "GetSubscriptionOrders", mock.Anything, mock.Anything)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
}

func TestForwardReconciler_InvoicePaid_OtherReason(t *testing.T) {
	r, commerce, audit := newForwardFixture()

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaid,
		`{"billing_reason":"manual","metadata":{"subscription_id":"S1"}}`))

	assert.False(t, result.Handled)
	assert.Empty(t, commerce.Calls)
	assert.Empty(t, audit.actions())
}

func TestForwardReconciler_InvoicePaid_MissingSubscriptionID(t *testing.T) {
	r, commerce, audit := newForwardFixture()

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaid,
		`{"id":"in_1","billing_reason":"subscription_cycle","parent":{"subscription_details":{"metadata":{}}}}`))

	assert.False(t, result.Handled)
	assert.Contains(t, result.Reason, "subscription_id")
	assert.Empty(t, result.Calls)
	assert.Empty(t, commerce.Calls)
	assert.Empty(t, audit.actions())
}

func TestInvoicePayload_CommerceSubscriptionID(t *testing.T) {
	tests := []struct {
		name    string
		payload InvoicePayload
		want    string
	}{
		{
			name: "parent details win",
			payload: InvoicePayload{
				Parent:              &invoiceParent{SubscriptionDetails: &subscriptionDetails{Metadata: map[string]string{"subscription_id": "A"}}},
				SubscriptionDetails: &subscriptionDetails{Metadata: map[string]string{"subscription_id": "B"}},
				Metadata:            map[string]string{"subscription_id": "C"},
			},
			want: "A",
		},
		{
			name: "legacy subscription details",
			payload: InvoicePayload{
				SubscriptionDetails: &subscriptionDetails{Metadata: map[string]string{"subscription_id": "B"}},
				Metadata:            map[string]string{"subscription_id": "C"},
			},
			want: "B",
		},
		{
			name:    "invoice metadata",
			payload: InvoicePayload{Metadata: map[string]string{"subscription_id": "C"}},
			want:    "C",
		},
		{
			name:    "nothing",
			payload: InvoicePayload{Parent: &invoiceParent{}},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.payload.CommerceSubscriptionID())
		})
	}
}

// ---------------------------------------------------------------------------
// invoice.payment_failed
// ---------------------------------------------------------------------------

func TestForwardReconciler_InvoicePaymentFailed(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", statusUpdate(reconcile.SubscriptionStatusOnHold)).Return(nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventInvoicePaymentFailed,
		`{"billing_reason":"subscription_cycle","parent":{"subscription_details":{"metadata":{"subscription_id":"S1"}}}}`))

	assert.True(t, result.Handled)
	commerce.AssertExpectations(t)
	commerce.AssertNotCalled(t, "GetSubscriptionOrders", mock.Anything, mock.Anything)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
}

// ---------------------------------------------------------------------------
// customer.subscription.*
// ---------------------------------------------------------------------------

func TestForwardReconciler_SubscriptionUpdated(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1",
		reconcile.WithGatewaySubscriptionID(reconcile.SubscriptionStatus("past_due"), "sub_1")).Return(nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventCustomerSubscriptionUpdated,
		`{"id":"sub_1","status":"past_due","metadata":{"subscription_id":"S1"}}`))

	assert.True(t, result.Handled)
	commerce.AssertExpectations(t)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
}

func TestForwardReconciler_SubscriptionUpdated_MissingStatus(t *testing.T) {
	r, commerce, _ := newForwardFixture()

	result := r.Handle(context.Background(), billingEvent(reconcile.EventCustomerSubscriptionUpdated,
		`{"id":"sub_1","metadata":{"subscription_id":"S1"}}`))

	assert.False(t, result.Handled)
	assert.Contains(t, result.Reason, "status")
	assert.Empty(t, commerce.Calls)
}

func TestForwardReconciler_SubscriptionDeleted(t *testing.T) {
	r, commerce, audit := newForwardFixture()
	commerce.On("UpdateSubscriptionStatus", mock.Anything, "S1", statusUpdate(reconcile.SubscriptionStatusCancelled)).Return(nil)

	result := r.Handle(context.Background(), billingEvent(reconcile.EventCustomerSubscriptionDeleted,
		`{"id":"sub_1","status":"canceled","metadata":{"subscription_id":"S1"}}`))

	assert.True(t, result.Handled)
	commerce.AssertExpectations(t)
	assert.Equal(t, []reconcile.AuditAction{reconcile.AuditActionSubscriptionUpdated}, audit.actions())
}

func TestForwardReconciler_SubscriptionDeleted_ParentMetadata(t *testing.T) {
	tests := []struct {
		name   string
		object string
		want   string
	}{
		{
			name:   "parent wins over metadata",
			object: `{"id":"sub_1","parent":{"subscription_details":{"metadata":{"subscription_id":"P1"}}},"metadata":{"subscription_id":"S1"}}`,
			want:   "P1",
		},
		{
			name:   "parent without id falls back to metadata",
			object: `{"id":"sub_1","parent":{"subscription_details":{"metadata":{}}},"metadata":{"subscription_id":"S1"}}`,
			want:   "S1",
		},
		{
			name:   "parent only",
			object: `{"id":"sub_1","parent":{"subscription_details":{"metadata":{"subscription_id":"P2"}}}}`,
			want:   "P2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, commerce, _ := newForwardFixture()
			commerce.On("UpdateSubscriptionStatus", mock.Anything, tt.want, statusUpdate(reconcile.SubscriptionStatusCancelled)).Return(nil)

			result := r.Handle(context.Background(), billingEvent(reconcile.EventCustomerSubscriptionDeleted, tt.object))

			assert.True(t, result.Handled)
			commerce.AssertExpectations(t)
		})
	}
}

// ---------------------------------------------------------------------------
// no-op paths
// ---------------------------------------------------------------------------

func TestForwardReconciler_UnknownEventType(t *testing.T) {
	r, commerce, audit := newForwardFixture()

	result := r.Handle(context.Background(), billingEvent("customer.created", `{"id":"cus_1"}`))

	assert.False(t, result.Handled)
	assert.Equal(t, reconcile.ErrUnknownEventType.Error(), result.Reason)
	assert.Empty(t, commerce.Calls)
	assert.Empty(t, audit.actions())
}

func TestForwardReconciler_UndecodableObject(t *testing.T) {
	r, commerce, _ := newForwardFixture()

	tests := []struct {
		name   string
		object string
	}{
		{"empty object", ``},
		{"metadata is not a map", `{"metadata":"nope"}`},
		{"subscription is a number", `{"subscription":12,"metadata":{"order_id":"1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Handle(context.Background(), billingEvent(reconcile.EventCheckoutSessionCompleted, tt.object))
			assert.False(t, result.Handled)
			assert.Contains(t, result.Reason, reconcile.ErrMalformedPayload.Error())
		})
	}
	assert.Empty(t, commerce.Calls)
}

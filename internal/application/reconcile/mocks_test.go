package reconcile

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// MockCommercePlatform is a mock implementation of reconcile.CommercePlatform
type MockCommercePlatform struct {
	mock.Mock
}

func (m *MockCommercePlatform) GetSubscription(ctx context.Context, subscriptionID string) (*reconcile.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Subscription), args.Error(1)
}

func (m *MockCommercePlatform) GetSubscriptionOrders(ctx context.Context, subscriptionID string) ([]reconcile.Order, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconcile.Order), args.Error(1)
}

func (m *MockCommercePlatform) GetOrder(ctx context.Context, orderID string) (*reconcile.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Order), args.Error(1)
}

func (m *MockCommercePlatform) ListSubscriptionsByParent(ctx context.Context, orderID string) ([]reconcile.Subscription, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconcile.Subscription), args.Error(1)
}

func (m *MockCommercePlatform) UpdateOrderStatus(ctx context.Context, orderID string, status reconcile.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *MockCommercePlatform) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, update reconcile.SubscriptionUpdate) error {
	args := m.Called(ctx, subscriptionID, update)
	return args.Error(0)
}

// MockPaymentGateway is a mock implementation of reconcile.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) GetSubscription(ctx context.Context, subscriptionID string) (*reconcile.GatewaySubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.GatewaySubscription), args.Error(1)
}

func (m *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *MockPaymentGateway) PauseSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *MockPaymentGateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

// recordedAudit captures audit entries in memory
type recordedAudit struct {
	mu      sync.Mutex
	entries []reconcile.AuditEntry
}

func (r *recordedAudit) Record(_ context.Context, action reconcile.AuditAction, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, reconcile.AuditEntry{Action: action, Details: details})
}

func (r *recordedAudit) actions() []reconcile.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reconcile.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// MockAuditStore is a mock implementation of reconcile.AuditStore
type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) Append(ctx context.Context, entry *reconcile.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockAuditStore) List(ctx context.Context, limit, offset int) ([]reconcile.AuditEntry, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconcile.AuditEntry), args.Error(1)
}

func (m *MockAuditStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedger is a mock implementation of reconcile.Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) MarkProcessed(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockLedger) Close() error {
	return m.Called().Error(0)
}

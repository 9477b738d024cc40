package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// LedgerFactory creates Redis-backed ledgers with an optional in-memory fallback
type LedgerFactory struct {
	redisConfig           RedisConfig
	keyPrefix             string
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LedgerFactoryOption is a functional option for configuring the factory
type LedgerFactoryOption func(*LedgerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LedgerFactoryOption {
	return func(f *LedgerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory ledger
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) LedgerFactoryOption {
	return func(f *LedgerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithKeyPrefix overrides DefaultLedgerKeyPrefix
func WithKeyPrefix(prefix string) LedgerFactoryOption {
	return func(f *LedgerFactory) {
		f.keyPrefix = prefix
	}
}

// NewLedgerFactory creates a new factory
func NewLedgerFactory(redisConfig RedisConfig, ledgerConfig reconcile.LedgerConfig, opts ...LedgerFactoryOption) *LedgerFactory {
	f := &LedgerFactory{
		redisConfig:           redisConfig,
		keyPrefix:             DefaultLedgerKeyPrefix,
		ttl:                   ledgerConfig.TTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisLedger creates a Redis-backed ledger
func (f *LedgerFactory) CreateRedisLedger() (*RedisLedger, error) {
	ledger, err := NewRedisLedger(f.redisConfig, f.keyPrefix, f.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis ledger: %w", err)
	}
	return ledger, nil
}

// CreateInMemoryLedger creates an in-memory ledger.
// WARNING: in-memory ledgers are not shared across instances, so a redelivery
// to another instance is processed again.
func (f *LedgerFactory) CreateInMemoryLedger() *InMemoryLedger {
	return NewInMemoryLedger(f.ttl)
}

// CreateLedger tries Redis first and falls back to memory when allowed
func (f *LedgerFactory) CreateLedger() (reconcile.Ledger, error) {
	ledger, err := f.CreateRedisLedger()
	if err == nil {
		f.logger.Info("Using Redis idempotency ledger",
			zap.String("addr", fmt.Sprintf("%s:%d", f.redisConfig.Host, f.redisConfig.Port)))
		return ledger, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency ledger but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency ledger. "+
		"Duplicate deliveries across instances will be processed again.",
		zap.Error(err),
	)
	return f.CreateInMemoryLedger(), nil
}

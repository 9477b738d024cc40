package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// DefaultLedgerKeyPrefix namespaces ledger keys in a shared Redis
const DefaultLedgerKeyPrefix = "subsync:processed_event:"

// RedisLedger implements reconcile.Ledger using Redis keys with a TTL.
// Suitable for deployments where several instances share one ledger.
type RedisLedger struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisLedger connects to Redis and creates a ledger
func NewRedisLedger(cfg RedisConfig, keyPrefix string, ttl time.Duration) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLedgerWithClient(client, keyPrefix, ttl), nil
}

// NewRedisLedgerWithClient creates a ledger with an existing Redis client
func NewRedisLedgerWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisLedger {
	if keyPrefix == "" {
		keyPrefix = DefaultLedgerKeyPrefix
	}
	return &RedisLedger{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// IsProcessed checks if an event id key exists
func (l *RedisLedger) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return exists > 0, nil
}

// MarkProcessed records the event id. SETNX keeps the original timestamp
// when the id is already present.
func (l *RedisLedger) MarkProcessed(ctx context.Context, eventID string) error {
	value := time.Now().UTC().Format(time.RFC3339)
	if err := l.client.SetNX(ctx, l.keyPrefix+eventID, value, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

// Ping checks the connection
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

var _ reconcile.Ledger = (*RedisLedger)(nil)

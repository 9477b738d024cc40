package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsync/backend/internal/domain/reconcile"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisLedger_MarkAndCheck(t *testing.T) {
	mr, client := setupMiniredis(t)
	ledger := NewRedisLedgerWithClient(client, "", time.Hour)
	defer ledger.Close()

	ctx := context.Background()

	processed, err := ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, ledger.MarkProcessed(ctx, "evt_1"))

	processed, err = ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)

	assert.True(t, mr.Exists(DefaultLedgerKeyPrefix+"evt_1"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultLedgerKeyPrefix+"evt_1"))
}

func TestRedisLedger_MarkTwiceKeepsFirstValue(t *testing.T) {
	mr, client := setupMiniredis(t)
	ledger := NewRedisLedgerWithClient(client, "test:", time.Hour)
	defer ledger.Close()

	ctx := context.Background()
	require.NoError(t, mr.Set("test:evt_1", "original"))

	require.NoError(t, ledger.MarkProcessed(ctx, "evt_1"))

	got, err := mr.Get("test:evt_1")
	require.NoError(t, err)
	assert.Equal(t, "original", got)
}

func TestRedisLedger_Expiry(t *testing.T) {
	mr, client := setupMiniredis(t)
	ledger := NewRedisLedgerWithClient(client, "", time.Minute)
	defer ledger.Close()

	ctx := context.Background()
	require.NoError(t, ledger.MarkProcessed(ctx, "evt_1"))

	mr.FastForward(2 * time.Minute)

	processed, err := ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRedisLedger_ConnectionErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	ledger := NewRedisLedgerWithClient(client, "", time.Minute)
	defer ledger.Close()
	mr.Close()

	ctx := context.Background()
	_, err = ledger.IsProcessed(ctx, "evt_1")
	assert.Error(t, err)
	assert.Error(t, ledger.MarkProcessed(ctx, "evt_1"))
	assert.Error(t, ledger.Ping(ctx))
}

func TestLedgerFactory_CreateLedger(t *testing.T) {
	t.Run("uses redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)}

		ledger, err := NewLedgerFactory(cfg, reconcile.DefaultLedgerConfig()).CreateLedger()
		require.NoError(t, err)
		defer ledger.Close()

		_, ok := ledger.(*RedisLedger)
		assert.True(t, ok)
	})

	t.Run("falls back to memory", func(t *testing.T) {
		cfg := RedisConfig{Host: "127.0.0.1", Port: 1}

		ledger, err := NewLedgerFactory(cfg, reconcile.DefaultLedgerConfig()).CreateLedger()
		require.NoError(t, err)
		defer ledger.Close()

		_, ok := ledger.(*InMemoryLedger)
		assert.True(t, ok)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		cfg := RedisConfig{Host: "127.0.0.1", Port: 1}

		_, err := NewLedgerFactory(cfg, reconcile.DefaultLedgerConfig(), WithInMemoryFallback(false)).CreateLedger()
		assert.Error(t, err)
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}

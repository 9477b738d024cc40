package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLedger_MarkAndCheck(t *testing.T) {
	ledger := NewInMemoryLedger(time.Hour)
	defer ledger.Close()

	ctx := context.Background()

	t.Run("unknown event is not processed", func(t *testing.T) {
		processed, err := ledger.IsProcessed(ctx, "evt_unknown")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("marked event is processed", func(t *testing.T) {
		require.NoError(t, ledger.MarkProcessed(ctx, "evt_1"))

		processed, err := ledger.IsProcessed(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("marking twice is not an error", func(t *testing.T) {
		require.NoError(t, ledger.MarkProcessed(ctx, "evt_2"))
		require.NoError(t, ledger.MarkProcessed(ctx, "evt_2"))
		assert.Equal(t, 2, ledger.Size())
	})
}

func TestInMemoryLedger_Expiry(t *testing.T) {
	ledger := NewInMemoryLedger(time.Minute)
	defer ledger.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, ledger.MarkProcessed(ctx, "evt_1"))

	now = now.Add(2 * time.Minute)

	processed, err := ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed, "expired event should be reprocessable")

	ledger.cleanup()
	assert.Equal(t, 0, ledger.Size())
}

func TestInMemoryLedger_NoTTL(t *testing.T) {
	ledger := NewInMemoryLedger(0)
	defer ledger.Close()

	now := time.Now()
	ledger.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, ledger.MarkProcessed(ctx, "evt_1"))

	now = now.Add(365 * 24 * time.Hour)
	ledger.cleanup()

	processed, err := ledger.IsProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryLedger_Concurrent(t *testing.T) {
	ledger := NewInMemoryLedger(time.Hour)
	defer ledger.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("evt_%d", i%10)
			_ = ledger.MarkProcessed(ctx, id)
			_, _ = ledger.IsProcessed(ctx, id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, ledger.Size())
}

func TestInMemoryLedger_CloseTwice(t *testing.T) {
	ledger := NewInMemoryLedger(time.Hour)
	assert.NoError(t, ledger.Close())
	assert.NoError(t, ledger.Close())
}

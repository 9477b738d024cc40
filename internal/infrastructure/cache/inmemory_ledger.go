package cache

import (
	"context"
	"sync"
	"time"

	"github.com/subsync/backend/internal/domain/reconcile"
)

const inMemoryCleanupInterval = 5 * time.Minute

// InMemoryLedger implements reconcile.Ledger using an in-memory map.
// State is lost on restart and not shared between instances.
type InMemoryLedger struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryLedger creates a new in-memory ledger. Ids expire after ttl;
// a non-positive ttl keeps them until Close.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryLedger(ttl time.Duration) *InMemoryLedger {
	l := &InMemoryLedger{
		entries:  make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop(inMemoryCleanupInterval)

	return l
}

// IsProcessed checks if an event id is recorded and not expired
func (l *InMemoryLedger) IsProcessed(_ context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	expiresAt, exists := l.entries[eventID]
	if !exists {
		return false, nil
	}
	if l.expired(expiresAt) {
		return false, nil
	}
	return true, nil
}

// MarkProcessed records the event id, refreshing its expiry if present
func (l *InMemoryLedger) MarkProcessed(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expiresAt time.Time
	if l.ttl > 0 {
		expiresAt = l.now().Add(l.ttl)
	}
	l.entries[eventID] = expiresAt
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryLedger) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

// Size returns the number of entries held, including expired ones not yet swept
func (l *InMemoryLedger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// expired reports whether expiresAt has passed. Zero means no expiry.
func (l *InMemoryLedger) expired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && l.now().After(expiresAt)
}

func (l *InMemoryLedger) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryLedger) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for eventID, expiresAt := range l.entries {
		if l.expired(expiresAt) {
			delete(l.entries, eventID)
		}
	}
}

var _ reconcile.Ledger = (*InMemoryLedger)(nil)

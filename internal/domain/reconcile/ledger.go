package reconcile

import (
	"context"
	"time"
)

// Ledger records gateway event ids whose side effects have been attempted.
//
// MarkProcessed is called once per event, after every downstream call for
// that event has run. Marking an id that is already present is not an error.
type Ledger interface {
	// IsProcessed reports whether the event id has been recorded
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event id
	MarkProcessed(ctx context.Context, eventID string) error

	// Close releases resources held by the ledger
	Close() error
}

// ProcessedEvent is a ledger record
type ProcessedEvent struct {
	EventID     string
	ProcessedAt time.Time
}

// LedgerConfig holds configuration shared by ledger backends
type LedgerConfig struct {
	// TTL bounds how long an id is remembered by expiring backends (redis, memory).
	// The database backend keeps records until pruned by an operator.
	TTL time.Duration
}

// DefaultLedgerConfig returns the default ledger configuration
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		TTL: 30 * 24 * time.Hour,
	}
}

package reconcile

import (
	"context"
	"time"
)

// AuditEntry is one record in the audit log
type AuditEntry struct {
	ID        string
	Action    AuditAction
	Details   map[string]any
	Timestamp time.Time
}

// AuditStore is the append-only audit log
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	// List returns entries newest first; limit <= 0 returns all entries
	List(ctx context.Context, limit, offset int) ([]AuditEntry, error)
	Count(ctx context.Context) (int64, error)
}

// AuditRecorder is the fire-and-forget write side used by the reconcilers
type AuditRecorder interface {
	Record(ctx context.Context, action AuditAction, details map[string]any)
}

package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// auditWriteTimeout bounds a single audit write
const auditWriteTimeout = 5 * time.Second

// AuditLogger records state changes to the audit store. Writes never fail the
// triggering operation: errors are logged and dropped.
type AuditLogger struct {
	store  reconcile.AuditStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new AuditLogger
func NewAuditLogger(store reconcile.AuditStore, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Record appends an entry. Actions outside the recorded set are dropped.
func (a *AuditLogger) Record(ctx context.Context, action reconcile.AuditAction, details map[string]any) {
	if !action.IsValid() {
		a.logger.Debug("Dropping audit entry with unrecorded action", zap.String("action", string(action)))
		return
	}

	// Detach from request cancellation so a client hang-up does not drop the entry
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	entry := &reconcile.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Details:   details,
		Timestamp: a.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Audit store panicked", zap.Any("panic", r), zap.String("action", string(action)))
		}
	}()

	if err := a.store.Append(writeCtx, entry); err != nil {
		a.logger.Warn("Failed to write audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// AuditLogPage is one page of audit entries
type AuditLogPage struct {
	Items []reconcile.AuditEntry
	Total int64
}

// AuditQueryService serves audit log reads
type AuditQueryService struct {
	store reconcile.AuditStore
}

// NewAuditQueryService creates a new AuditQueryService
func NewAuditQueryService(store reconcile.AuditStore) *AuditQueryService {
	return &AuditQueryService{store: store}
}

// ListAll returns every entry newest first
func (s *AuditQueryService) ListAll(ctx context.Context) ([]reconcile.AuditEntry, error) {
	return s.store.List(ctx, 0, 0)
}

// ListPage returns one page of entries newest first with the total count
func (s *AuditQueryService) ListPage(ctx context.Context, limit, offset int) (*AuditLogPage, error) {
	items, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &AuditLogPage{Items: items, Total: total}, nil
}

package persistence

import (
	"context"
	"fmt"

	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements reconcile.AuditStore on the audit_logs table
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append inserts one entry
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *reconcile.AuditEntry) error {
	var row models.AuditLogModel
	if err := row.FromDomain(entry); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// List returns entries ordered by timestamp, newest first. A limit <= 0 returns every entry.
func (r *GormAuditLogRepository) List(ctx context.Context, limit, offset int) ([]reconcile.AuditEntry, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AuditLogModel{}).
		Order("timestamp DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
		if offset > 0 {
			query = query.Offset(offset)
		}
	}

	var rows []models.AuditLogModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	entries := make([]reconcile.AuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Count returns the total number of entries
func (r *GormAuditLogRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AuditLogModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return count, nil
}

var _ reconcile.AuditStore = (*GormAuditLogRepository)(nil)

package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProcessedEventRepository implements reconcile.Ledger on the processed_events table
type GormProcessedEventRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormProcessedEventRepository creates a new GormProcessedEventRepository
func NewGormProcessedEventRepository(db *gorm.DB) *GormProcessedEventRepository {
	return &GormProcessedEventRepository{
		db:  db,
		now: time.Now,
	}
}

// IsProcessed reports whether eventID has a ledger row
func (r *GormProcessedEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup processed event %s: %w", eventID, err)
	}
	return count > 0, nil
}

// MarkProcessed inserts a ledger row for eventID. An existing row is left untouched.
func (r *GormProcessedEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	row := &models.ProcessedEventModel{
		EventID:     eventID,
		ProcessedAt: r.now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("mark processed event %s: %w", eventID, err)
	}
	return nil
}

// Get returns the ledger record for eventID
func (r *GormProcessedEventRepository) Get(ctx context.Context, eventID string) (*reconcile.ProcessedEvent, error) {
	var row models.ProcessedEventModel
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error; err != nil {
		return nil, err
	}
	event := row.ToDomain()
	return &event, nil
}

// PruneOlderThan deletes ledger rows processed more than age ago and returns how many were removed
func (r *GormProcessedEventRepository) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-age)
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.ProcessedEventModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune processed events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close is a no-op; the connection is owned by Database
func (r *GormProcessedEventRepository) Close() error {
	return nil
}

var _ reconcile.Ledger = (*GormProcessedEventRepository)(nil)

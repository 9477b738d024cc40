package models

import (
	"time"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// ProcessedEventModel is one idempotency ledger row
type ProcessedEventModel struct {
	EventID     string    `gorm:"type:varchar(255);primaryKey"`
	ProcessedAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for the model
func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

// ToDomain converts the model to a domain record
func (m *ProcessedEventModel) ToDomain() reconcile.ProcessedEvent {
	return reconcile.ProcessedEvent{
		EventID:     m.EventID,
		ProcessedAt: m.ProcessedAt.UTC(),
	}
}

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// AuditLogModel is one audit log row. Details holds the JSON-encoded map.
type AuditLogModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Action    string    `gorm:"type:varchar(64);not null;index"`
	Details   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null;index"`
}

// TableName returns the table name for the model
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the model to a domain entry
func (m *AuditLogModel) ToDomain() (reconcile.AuditEntry, error) {
	details := map[string]any{}
	if m.Details != "" {
		if err := json.Unmarshal([]byte(m.Details), &details); err != nil {
			return reconcile.AuditEntry{}, fmt.Errorf("audit log %s: decode details: %w", m.ID, err)
		}
	}
	return reconcile.AuditEntry{
		ID:        m.ID,
		Action:    reconcile.AuditAction(m.Action),
		Details:   details,
		Timestamp: m.Timestamp.UTC(),
	}, nil
}

// FromDomain populates the model from a domain entry
func (m *AuditLogModel) FromDomain(e *reconcile.AuditEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("audit log %s: encode details: %w", e.ID, err)
	}
	m.ID = e.ID
	m.Action = string(e.Action)
	m.Details = string(raw)
	m.Timestamp = e.Timestamp
	return nil
}

package persistence

import "github.com/subsync/backend/internal/infrastructure/persistence/models"

// Models lists every table model, in creation order
func Models() []any {
	return []any{
		&models.ProcessedEventModel{},
		&models.AuditLogModel{},
	}
}

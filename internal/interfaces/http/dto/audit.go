package dto

import (
	"time"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// AuditLogResponse is one audit entry
type AuditLogResponse struct {
	ID        string         `json:"id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditLogPageResponse is one page of the admin audit view
type AuditLogPageResponse struct {
	Items []AuditLogResponse `json:"items"`
	Total int64              `json:"total"`
}

// NewAuditLogResponse maps an entry including its id
func NewAuditLogResponse(e reconcile.AuditEntry) AuditLogResponse {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return AuditLogResponse{
		ID:        e.ID,
		Action:    string(e.Action),
		Details:   details,
		Timestamp: e.Timestamp.UTC(),
	}
}

// NewAuditLogResponses maps entries for the public view, which omits ids
func NewAuditLogResponses(entries []reconcile.AuditEntry) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(entries))
	for _, e := range entries {
		r := NewAuditLogResponse(e)
		r.ID = ""
		out = append(out, r)
	}
	return out
}

// NewAuditLogPageResponse maps a page for the admin view
func NewAuditLogPageResponse(items []reconcile.AuditEntry, total int64) AuditLogPageResponse {
	out := make([]AuditLogResponse, 0, len(items))
	for _, e := range items {
		out = append(out, NewAuditLogResponse(e))
	}
	return AuditLogPageResponse{Items: out, Total: total}
}

package dto

import "github.com/subsync/backend/internal/application/reconcile"

// WebhookAckResponse is the body returned to a webhook sender
type WebhookAckResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewWebhookAckResponse acknowledges a handled or ignored delivery
func NewWebhookAckResponse(ack *reconcile.AckDecision) WebhookAckResponse {
	resp := WebhookAckResponse{Received: true}
	if ack == nil {
		return resp
	}
	resp.EventID = ack.EventID
	resp.Duplicate = ack.Duplicate
	resp.Ignored = ack.Ignored
	resp.Message = ack.Message
	return resp
}

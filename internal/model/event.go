package model

import (
	"time"
)

// EventType represents the type of portal audit event.
type EventType string

const (
	EventTypeUsageAdmitted  EventType = "usage_admitted"
	EventTypeUsageDenied    EventType = "usage_denied"
	EventTypeSessionStarted EventType = "session_started"
	EventTypeSessionEnded   EventType = "session_ended"
	EventTypeAnswered       EventType = "answered"
	EventTypeAnswerFailed   EventType = "answer_failed"
)

// PortalEvent is an audit event published for operational visibility. The
// request path never blocks on or fails because of event publishing.
type PortalEvent struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	SessionID string         `json:"session_id,omitempty"`
	Type      EventType      `json:"type"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

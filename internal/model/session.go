package model

import (
	"time"
)

// Session holds one authenticated user's state: the aggregated document
// context, the conversation so far, and per-session settings. It is built
// once at authentication and never re-aggregates.
type Session struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// Aggregated document context. Immutable after creation.
	Context   string `json:"-"`
	FileCount int    `json:"file_count"`

	// Conversation, append-only.
	Turns []Turn `json:"-"`

	// Settings
	Persona     string  `json:"persona,omitempty"`
	Temperature float64 `json:"temperature"`

	// QueryCount counts questions asked in this session. Informational;
	// admission is decided by the process-wide usage tracker.
	QueryCount int `json:"query_count"`

	CreatedAt time.Time `json:"created_at"`
}

// ContextChars returns the size of the aggregated context in bytes.
func (s *Session) ContextChars() int {
	return len(s.Context)
}

// CreateSessionRequest is the request to open a session.
type CreateSessionRequest struct {
	AccessID string `json:"access_id"`
}

// CreateSessionResponse is returned after a session is opened.
type CreateSessionResponse struct {
	Token        string `json:"token"`
	SessionID    string `json:"session_id"`
	TenantID     string `json:"tenant_id"`
	FileCount    int    `json:"file_count"`
	ContextChars int    `json:"context_chars"`
}

// SessionInfoResponse describes an open session.
type SessionInfoResponse struct {
	SessionID    string    `json:"session_id"`
	TenantID     string    `json:"tenant_id"`
	FileCount    int       `json:"file_count"`
	ContextChars int       `json:"context_chars"`
	QueryCount   int       `json:"query_count"`
	Persona      string    `json:"persona,omitempty"`
	Temperature  float64   `json:"temperature"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpdateSettingsRequest updates per-session settings. Nil fields are left
// unchanged.
type UpdateSettingsRequest struct {
	Persona     *string  `json:"persona,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

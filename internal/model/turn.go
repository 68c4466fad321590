// Package model defines data structures for the research portal.
package model

import (
	"time"
)

// Role represents the role of a turn's author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn represents one entry in a session's conversation.
type Turn struct {
	// Identity
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	TenantID  string `json:"tenant_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// LLM metadata (nil for user turns and error answers)
	Model      *string `json:"model,omitempty"`
	TokensIn   *int    `json:"tokens_in,omitempty"`
	TokensOut  *int    `json:"tokens_out,omitempty"`
	LatencyMs  *int64  `json:"latency_ms,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AskRequest is the request to ask a question in a session.
type AskRequest struct {
	Content     string   `json:"content"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// AskResponse is the response after a question is answered.
type AskResponse struct {
	Question *Turn    `json:"question"`
	Answer   *Turn    `json:"answer"`
	Usage    Decision `json:"usage"`
}

// ListTurnsResponse is the response for reading a session's history.
type ListTurnsResponse struct {
	Turns []Turn `json:"turns"`
	Total int    `json:"total"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// AnswerCompleteEvent represents a completed streamed answer.
type AnswerCompleteEvent struct {
	Answer Turn     `json:"answer"`
	Usage  Decision `json:"usage"`
}

// ErrorEvent represents an error event on a stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

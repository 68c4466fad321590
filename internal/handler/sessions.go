// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/middleware"
	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/internal/session"
	"github.com/q360-insights/research-portal/internal/storage"
	"github.com/q360-insights/research-portal/internal/tenant"
	"github.com/q360-insights/research-portal/pkg/logger"
)

// SessionHandler handles session lifecycle endpoints.
type SessionHandler struct {
	sessions *session.Manager
	secret   string
	tokenTTL time.Duration
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *session.Manager, secret string, tokenTTL time.Duration, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   log,
	}
}

// Create handles POST /api/v1/sessions
// The access id comes from the JSON body or, for embedded use, from the
// client_id query parameter.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateSessionRequest
	if r.Body != nil {
		// An empty or absent body is fine when client_id is in the URL.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.AccessID == "" {
		req.AccessID = r.URL.Query().Get("client_id")
	}

	if err := middleware.ValidateAccessID(req.AccessID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Authenticate(ctx, req.AccessID)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrUnknownTenant):
			writeError(w, http.StatusUnauthorized, "invalid access ID, please check your credentials")
		case errors.Is(err, storage.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "document storage is not configured, please contact your administrator")
		default:
			h.logger.Error("failed to load tenant documents", zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to load research data")
		}
		return
	}

	token, err := middleware.IssueToken(h.secret, sess.ID, sess.TenantID, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, &model.CreateSessionResponse{
		Token:        token,
		SessionID:    sess.ID,
		TenantID:     sess.TenantID,
		FileCount:    sess.FileCount,
		ContextChars: sess.ContextChars(),
	})
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Snapshot(middleware.GetSessionID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
		return
	}

	writeJSON(w, http.StatusOK, &model.SessionInfoResponse{
		SessionID:    sess.ID,
		TenantID:     sess.TenantID,
		FileCount:    sess.FileCount,
		ContextChars: sess.ContextChars(),
		QueryCount:   sess.QueryCount,
		Persona:      sess.Persona,
		Temperature:  sess.Temperature,
		CreatedAt:    sess.CreatedAt,
	})
}

// UpdateSettings handles PUT /api/v1/session/settings
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Persona != nil {
		if err := middleware.ValidatePersona(*req.Persona); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Temperature != nil {
		if err := middleware.ValidateTemperature(*req.Temperature); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sess, err := h.sessions.UpdateSettings(middleware.GetSessionID(r.Context()), &req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"persona":     sess.Persona,
		"temperature": sess.Temperature,
	})
}

// Delete handles DELETE /api/v1/session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

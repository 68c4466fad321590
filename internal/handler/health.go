package handler

import (
	"net/http"

	"github.com/q360-insights/research-portal/internal/events"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient *events.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// the audit sink is disabled.
func NewHealthHandler(natsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// The audit sink is optional, but if it is configured it must be up.
	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

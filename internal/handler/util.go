package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/q360-insights/research-portal/internal/model"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeRateLimited writes the defined denial outcome of an admission check,
// with the current/limit/period values.
func writeRateLimited(w http.ResponseWriter, decision model.Decision) {
	writeJSON(w, http.StatusTooManyRequests, model.RateLimitedResponse{
		Error:   fmt.Sprintf("usage limit reached (%d/%d per %s)", decision.Count, decision.Limit, decision.Period),
		Current: decision.Count,
		Limit:   decision.Limit,
		Period:  decision.Period,
	})
}

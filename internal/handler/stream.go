package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/q360-insights/research-portal/internal/middleware"
	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/pkg/metrics"
)

// StreamAnswer handles POST /api/v1/session/stream
// Same flow as Ask, but the answer arrives as SSE token events.
func (h *MessageHandler) StreamAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := h.sessions.Snapshot(middleware.GetSessionID(ctx))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
		return
	}

	var req model.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Rejections, usage denial included, happen before the stream starts so
	// the client gets a plain status code.
	flow, failure := h.beginAsk(ctx, &sess, &req)
	if failure != nil {
		failure.write(w)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "question", flow.question)

	answerTurn := h.complete(ctx, flow, func(token string, index int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
			Token: token,
			Index: index,
		})
	})

	// A failed generation still yields an answer turn carrying the error
	// text, mirroring the non-streaming path.
	if answerTurn.Model == nil {
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "generation_failed",
			Message: answerTurn.Content,
		})
	}

	sendSSEEvent(w, flusher, "message_complete", &model.AnswerCompleteEvent{
		Answer: *answerTurn,
		Usage:  flow.decision,
	})

	sendSSEEvent(w, flusher, "done", map[string]bool{"success": answerTurn.Model != nil})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}

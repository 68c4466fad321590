package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/answer"
	"github.com/q360-insights/research-portal/internal/events"
	"github.com/q360-insights/research-portal/internal/llm"
	"github.com/q360-insights/research-portal/internal/middleware"
	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/internal/session"
	"github.com/q360-insights/research-portal/internal/usage"
	"github.com/q360-insights/research-portal/pkg/logger"
)

// MessageHandler handles question/answer endpoints.
type MessageHandler struct {
	sessions  *session.Manager
	tracker   *usage.Tracker
	generator *answer.Generator
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	sessions *session.Manager,
	tracker *usage.Tracker,
	generator *answer.Generator,
	publisher *events.Publisher,
	log *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		sessions:  sessions,
		tracker:   tracker,
		generator: generator,
		publisher: publisher,
		logger:    log,
	}
}

// List handles GET /api/v1/session/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	turns, err := h.sessions.History(middleware.GetSessionID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session expired, please sign in again")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListTurnsResponse{
		Turns: turns,
		Total: len(turns),
	})
}

// Ask handles POST /api/v1/session/messages
func (h *MessageHandler) Ask(w http.ResponseWriter, r *http.Request) {
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

	flow, failure := h.beginAsk(ctx, &sess, &req)
	if failure != nil {
		failure.write(w)
		return
	}

	answerTurn := h.complete(ctx, flow, nil)

	writeJSON(w, http.StatusOK, &model.AskResponse{
		Question: &flow.question,
		Answer:   answerTurn,
		Usage:    flow.decision,
	})
}

// askFlow carries the state of one admitted question through generation.
type askFlow struct {
	sess        *model.Session
	question    model.Turn
	history     []model.Turn
	temperature float64
	decision    model.Decision
}

// askFailure is a pre-generation rejection: validation, expired session, or
// a usage denial (the latter carries the decision for the 429 body).
type askFailure struct {
	status   int
	message  string
	decision *model.Decision
}

func (f *askFailure) write(w http.ResponseWriter) {
	if f.decision != nil {
		writeRateLimited(w, *f.decision)
		return
	}
	writeError(w, f.status, f.message)
}

// beginAsk validates the question, runs the admission check and records the
// user turn.
func (h *MessageHandler) beginAsk(ctx context.Context, sess *model.Session, req *model.AskRequest) (*askFlow, *askFailure) {
	if err := middleware.ValidateQuestion(req.Content); err != nil {
		return nil, &askFailure{status: http.StatusBadRequest, message: err.Error()}
	}

	temperature := sess.Temperature
	if req.Temperature != nil {
		if err := middleware.ValidateTemperature(*req.Temperature); err != nil {
			return nil, &askFailure{status: http.StatusBadRequest, message: err.Error()}
		}
		temperature = *req.Temperature
	}

	decision := h.tracker.CheckAndAdmit(sess.TenantID)
	h.publisher.PublishUsage(ctx, sess.TenantID, sess.ID, decision)
	if !decision.Admitted {
		log := h.logger.WithContext(middleware.GetCorrelationID(ctx), sess.TenantID, sess.ID)
		log.Info("question denied by usage tracker",
			zap.Int("count", decision.Count),
			zap.Int("limit", decision.Limit),
			zap.String("period", string(decision.Period)),
		)
		return nil, &askFailure{status: http.StatusTooManyRequests, decision: &decision}
	}

	// History is snapshotted before the in-flight question is appended, so
	// the prompt's history block excludes it.
	history, err := h.sessions.History(sess.ID)
	if err != nil {
		return nil, &askFailure{status: http.StatusUnauthorized, message: "session expired, please sign in again"}
	}

	question := model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: sess.ID,
		TenantID:  sess.TenantID,
		Role:      model.RoleUser,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := h.sessions.AppendTurn(sess.ID, question); err != nil {
		return nil, &askFailure{status: http.StatusUnauthorized, message: "session expired, please sign in again"}
	}

	return &askFlow{
		sess:        sess,
		question:    question,
		history:     history,
		temperature: temperature,
		decision:    decision,
	}, nil
}

// complete runs generation for an admitted question and records the answer
// turn. Model failure degrades to a visible answer string, never an HTTP
// error.
func (h *MessageHandler) complete(ctx context.Context, flow *askFlow, callback llm.StreamCallback) *model.Turn {
	var resp *llm.CompletionResponse
	var err error
	if callback != nil {
		resp, err = h.generator.GenerateStream(ctx, flow.sess.Context, flow.question.Content, flow.history, flow.sess.Persona, flow.temperature, callback)
	} else {
		resp, err = h.generator.Generate(ctx, flow.sess.Context, flow.question.Content, flow.history, flow.sess.Persona, flow.temperature)
	}

	answerTurn := model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: flow.sess.ID,
		TenantID:  flow.sess.TenantID,
		Role:      model.RoleAssistant,
		CreatedAt: time.Now(),
	}

	if err != nil {
		answerTurn.Content = answer.RenderFailure(err)
		h.publisher.Publish(ctx, &model.PortalEvent{
			TenantID:  flow.sess.TenantID,
			SessionID: flow.sess.ID,
			Type:      model.EventTypeAnswerFailed,
			Reason:    string(answer.KindOf(err)),
		})
	} else {
		answerTurn.Content = resp.Content
		answerTurn.Model = &resp.Model
		answerTurn.TokensIn = &resp.TokensIn
		answerTurn.TokensOut = &resp.TokensOut
		answerTurn.LatencyMs = &resp.LatencyMs
		answerTurn.StopReason = &resp.StopReason
		h.publisher.Publish(ctx, &model.PortalEvent{
			TenantID:  flow.sess.TenantID,
			SessionID: flow.sess.ID,
			Type:      model.EventTypeAnswered,
			Metadata: map[string]any{
				"tokens_in":  resp.TokensIn,
				"tokens_out": resp.TokensOut,
				"latency_ms": resp.LatencyMs,
			},
		})
	}

	if err := h.sessions.AppendTurn(flow.sess.ID, answerTurn); err != nil {
		h.logger.Warn("failed to record answer turn",
			zap.String("session_id", flow.sess.ID),
			zap.Error(err),
		)
	}

	return &answerTurn
}

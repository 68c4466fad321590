package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/aggregate"
	"github.com/q360-insights/research-portal/internal/answer"
	"github.com/q360-insights/research-portal/internal/llm"
	"github.com/q360-insights/research-portal/internal/middleware"
	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/internal/session"
	"github.com/q360-insights/research-portal/internal/storage"
	"github.com/q360-insights/research-portal/internal/tenant"
	"github.com/q360-insights/research-portal/internal/usage"
	"github.com/q360-insights/research-portal/pkg/logger"
)

const testSecret = "test-secret"

type fakeStore struct {
	folders  map[string][]storage.Entry
	contents map[string][]byte
	err      error
}

func (s *fakeStore) List(_ context.Context, folderID string) ([]storage.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.folders[folderID], nil
}

func (s *fakeStore) Download(_ context.Context, fileID string) ([]byte, error) {
	return s.contents[fileID], nil
}

func (s *fakeStore) ExportText(_ context.Context, fileID string) ([]byte, error) {
	return nil, errors.New("not used")
}

type fakeLLM struct {
	answer string
	err    error
}

func (c *fakeLLM) Complete(_ context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: c.answer, Model: "fake-model", TokensIn: 10, TokensOut: 5}, nil
}

func (c *fakeLLM) CompleteStream(_ context.Context, _ *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i, token := range strings.SplitAfter(c.answer, " ") {
		if err := callback(token, i); err != nil {
			return nil, err
		}
	}
	return &llm.CompletionResponse{Content: c.answer, Model: "fake-model", TokensIn: 10, TokensOut: 5}, nil
}

func (c *fakeLLM) Name() string { return "fake" }

type testEnv struct {
	router *chi.Mux
	store  *fakeStore
}

// newTestEnv assembles the API stack the way main does, with in-memory
// collaborators. policy controls admission limits, client the model.
func newTestEnv(t *testing.T, policy usage.Policy, client llm.Client) *testEnv {
	t.Helper()
	log := &logger.Logger{Logger: zap.NewNop()}

	store := &fakeStore{
		folders: map[string][]storage.Entry{
			"folder-1": {{ID: "f1", Name: "notes.txt", MimeType: storage.MimePlainText}},
		},
		contents: map[string][]byte{"f1": []byte("interview transcript")},
	}

	dir := tenant.New(map[string]string{"demo": "folder-1"})
	agg := aggregate.New(store, 0, log)
	sessions := session.NewManager(dir, agg, nil, time.Hour, log)
	tracker := usage.NewTracker(policy)
	generator := answer.NewGenerator(client, log)

	sessionHandler := NewSessionHandler(sessions, testSecret, time.Hour, log)
	messageHandler := NewMessageHandler(sessions, tracker, generator, nil, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", sessionHandler.Create)
		r.Route("/session", func(r chi.Router) {
			r.Use(middleware.Auth(testSecret))
			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)
			r.Put("/settings", sessionHandler.UpdateSettings)
			r.Get("/messages", messageHandler.List)
			r.Post("/messages", messageHandler.Ask)
			r.Post("/stream", messageHandler.StreamAnswer)
		})
	})

	return &testEnv{router: r, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signIn(t *testing.T) model.CreateSessionResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", "", model.CreateSessionRequest{AccessID: "demo"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp model.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})

	resp := env.signIn(t)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "demo", resp.TenantID)
	assert.Equal(t, 1, resp.FileCount)
	assert.Greater(t, resp.ContextChars, 0)
}

func TestCreateSessionClientIDQueryParam(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions?client_id=demo", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateSessionUnknownAccessID(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "", model.CreateSessionRequest{AccessID: "intruder"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid access ID")
}

func TestCreateSessionMissingAccessID(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionStorageNotConfigured(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	env.store.err = storage.ErrNotConfigured

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "", model.CreateSessionRequest{AccessID: "demo"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateSessionStorageFailure(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	env.store.err = errors.New("drive 500")

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "", model.CreateSessionRequest{AccessID: "demo"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetSessionInfo(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	rec := env.do(t, http.MethodGet, "/api/v1/session", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info model.SessionInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, created.SessionID, info.SessionID)
	assert.Equal(t, 1, info.FileCount)
	assert.Equal(t, 0, info.QueryCount)
	assert.Equal(t, answer.DefaultTemperature, info.Temperature)
}

func TestSessionEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})

	rec := env.do(t, http.MethodGet, "/api/v1/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredSessionBehindValidToken(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	// End the session; the token is still valid but the session is gone.
	rec := env.do(t, http.MethodDelete, "/api/v1/session", created.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/session", created.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session expired")
}

func TestAskAndHistory(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "There were 12 participants."})
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: "how many participants?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Question)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "how many participants?", resp.Question.Content)
	assert.Equal(t, "There were 12 participants.", resp.Answer.Content)
	require.NotNil(t, resp.Answer.Model)
	assert.Equal(t, "fake-model", *resp.Answer.Model)
	assert.True(t, resp.Usage.Admitted)
	assert.Equal(t, 1, resp.Usage.Count)

	rec = env.do(t, http.MethodGet, "/api/v1/session/messages", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list model.ListTurnsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, model.RoleUser, list.Turns[0].Role)
	assert.Equal(t, model.RoleAssistant, list.Turns[1].Role)
}

func TestAskValidation(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := 1.5
	rec = env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: "q", Temperature: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskDeniedByUsageTracker(t *testing.T) {
	policy := usage.DefaultPolicy()
	policy.DefaultLimit = 2
	env := newTestEnv(t, policy, &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
			model.AskRequest{Content: "q"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: "q"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var denied model.RateLimitedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &denied))
	assert.Equal(t, 2, denied.Current)
	assert.Equal(t, 2, denied.Limit)
	assert.Equal(t, model.PeriodDay, denied.Period)
	assert.Contains(t, denied.Error, "usage limit reached (2/2 per day)")

	// A denied question leaves no trace in the conversation.
	recList := env.do(t, http.MethodGet, "/api/v1/session/messages", created.Token, nil)
	var list model.ListTurnsResponse
	require.NoError(t, json.Unmarshal(recList.Body.Bytes(), &list))
	assert.Equal(t, 4, list.Total)
}

func TestAskModelFailureDegrades(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{err: errors.New("529 overloaded")})
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: "q"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Answer)
	assert.Contains(t, resp.Answer.Content, "[Error generating response: 529 overloaded]")
	assert.Nil(t, resp.Answer.Model)

	// The error answer becomes part of the history like any other turn.
	recList := env.do(t, http.MethodGet, "/api/v1/session/messages", created.Token, nil)
	var list model.ListTurnsResponse
	require.NoError(t, json.Unmarshal(recList.Body.Bytes(), &list))
	require.Equal(t, 2, list.Total)
	assert.Contains(t, list.Turns[1].Content, "[Error generating response:")
}

func TestAskNoModelConfigured(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), nil)
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: "q"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer.Content, "not configured")
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	persona := "Focus on pricing."
	temp := 0.8
	rec := env.do(t, http.MethodPut, "/api/v1/session/settings", created.Token,
		model.UpdateSettingsRequest{Persona: &persona, Temperature: &temp})
	require.Equal(t, http.StatusOK, rec.Code)

	recInfo := env.do(t, http.MethodGet, "/api/v1/session", created.Token, nil)
	var info model.SessionInfoResponse
	require.NoError(t, json.Unmarshal(recInfo.Body.Bytes(), &info))
	assert.Equal(t, "Focus on pricing.", info.Persona)
	assert.Equal(t, 0.8, info.Temperature)
}

func TestUpdateSettingsValidation(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	bad := 2.5
	rec := env.do(t, http.MethodPut, "/api/v1/session/settings", created.Token,
		model.UpdateSettingsRequest{Temperature: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamAnswer(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{answer: "one two three"})
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/stream", created.Token,
		model.AskRequest{Content: "q"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: question\n")
	assert.Contains(t, body, "event: token\n")
	assert.Contains(t, body, "event: message_complete\n")
	assert.Contains(t, body, "event: done\n")
	assert.NotContains(t, body, "event: error\n")
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, `"token":"one "`)
}

func TestStreamAnswerModelFailure(t *testing.T) {
	env := newTestEnv(t, usage.DefaultPolicy(), &fakeLLM{err: errors.New("529 overloaded")})
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/stream", created.Token,
		model.AskRequest{Content: "q"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, "[Error generating response: 529 overloaded]")
	assert.Contains(t, body, `"success":false`)
}

func TestStreamDeniedBeforeStreamStarts(t *testing.T) {
	policy := usage.DefaultPolicy()
	policy.DefaultLimit = 1
	env := newTestEnv(t, policy, &fakeLLM{answer: "ok"})
	created := env.signIn(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/messages", created.Token,
		model.AskRequest{Content: "q"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/session/stream", created.Token,
		model.AskRequest{Content: "q"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

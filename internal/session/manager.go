// Package session owns per-user session state: the aggregated document
// context, conversation history and settings, for the lifetime of one
// interactive session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/aggregate"
	"github.com/q360-insights/research-portal/internal/answer"
	"github.com/q360-insights/research-portal/internal/events"
	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/internal/tenant"
	"github.com/q360-insights/research-portal/pkg/logger"
	"github.com/q360-insights/research-portal/pkg/metrics"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Manager creates and owns sessions. A session moves from unauthenticated
// through authenticating (directory lookup + one aggregation run) to ready;
// an invalid access id never creates a session. Idle sessions expire from
// the store, which is the server-side analogue of the browser session
// ending.
type Manager struct {
	directory  *tenant.Directory
	aggregator *aggregate.Aggregator
	publisher  *events.Publisher
	logger     *logger.Logger

	store *gocache.Cache
	ttl   time.Duration

	// mu guards mutation of session contents. Sessions are per-user, so a
	// single lock is plenty.
	mu sync.Mutex
}

// NewManager creates a session manager with the given idle TTL.
func NewManager(directory *tenant.Directory, aggregator *aggregate.Aggregator, publisher *events.Publisher, ttl time.Duration, log *logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{
		directory:  directory,
		aggregator: aggregator,
		publisher:  publisher,
		logger:     log,
		store:      gocache.New(ttl, 10*time.Minute),
		ttl:        ttl,
	}
}

// Authenticate resolves an access id and, if valid, opens a session with a
// freshly aggregated context. Aggregation runs exactly once per session.
func (m *Manager) Authenticate(ctx context.Context, accessID string) (*model.Session, error) {
	folderID, err := m.directory.Resolve(accessID)
	if err != nil {
		return nil, err
	}

	result, err := m.aggregator.Aggregate(ctx, accessID, folderID)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    accessID,
		Context:     result.Context,
		FileCount:   result.FileCount,
		Temperature: answer.DefaultTemperature,
		CreatedAt:   time.Now(),
	}

	m.store.Set(sess.ID, sess, gocache.DefaultExpiration)

	metrics.SessionsTotal.WithLabelValues(sess.TenantID).Inc()
	m.publisher.Publish(ctx, &model.PortalEvent{
		TenantID:  sess.TenantID,
		SessionID: sess.ID,
		Type:      model.EventTypeSessionStarted,
		Metadata: map[string]any{
			"file_count":    sess.FileCount,
			"context_chars": sess.ContextChars(),
		},
	})
	m.logger.Info("session opened",
		zap.String("tenant_id", sess.TenantID),
		zap.String("session_id", sess.ID),
		zap.Int("file_count", sess.FileCount),
		zap.Int("context_chars", sess.ContextChars()),
	)

	return sess, nil
}

// Get returns an open session and refreshes its idle expiry.
func (m *Manager) Get(sessionID string) (*model.Session, error) {
	v, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	sess := v.(*model.Session)

	// Sliding expiry: any access keeps the session alive.
	m.store.Set(sessionID, sess, gocache.DefaultExpiration)

	return sess, nil
}

// Snapshot returns a consistent copy of a session's fields, taken under the
// lock, and refreshes the idle expiry. Handlers read this copy instead of the
// shared session while other requests may be mutating it.
func (m *Manager) Snapshot(sessionID string) (model.Session, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return model.Session{}, err
	}

	m.mu.Lock()
	snap := *sess
	snap.Turns = nil
	m.mu.Unlock()

	return snap, nil
}

// AppendTurn records a turn in the session's conversation. User turns also
// advance the informational per-session query count.
func (m *Manager) AppendTurn(sessionID string, turn model.Turn) error {
	sess, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	sess.Turns = append(sess.Turns, turn)
	if turn.Role == model.RoleUser {
		sess.QueryCount++
	}
	m.mu.Unlock()

	metrics.TurnsTotal.WithLabelValues(sess.TenantID, string(turn.Role)).Inc()
	return nil
}

// History returns a copy of the session's turns.
func (m *Manager) History(sessionID string) ([]model.Turn, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	turns := make([]model.Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	m.mu.Unlock()

	return turns, nil
}

// UpdateSettings applies persona/temperature changes. Nil fields are left
// unchanged. The returned copy reflects the state right after the update.
func (m *Manager) UpdateSettings(sessionID string, req *model.UpdateSettingsRequest) (model.Session, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return model.Session{}, err
	}

	m.mu.Lock()
	if req.Persona != nil {
		sess.Persona = *req.Persona
	}
	if req.Temperature != nil {
		sess.Temperature = *req.Temperature
	}
	snap := *sess
	snap.Turns = nil
	m.mu.Unlock()

	return snap, nil
}

// End closes a session; its history dies with it.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	sess, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	m.store.Delete(sessionID)

	m.publisher.Publish(ctx, &model.PortalEvent{
		TenantID:  sess.TenantID,
		SessionID: sess.ID,
		Type:      model.EventTypeSessionEnded,
	})
	m.logger.Info("session ended",
		zap.String("tenant_id", sess.TenantID),
		zap.String("session_id", sess.ID),
	)

	return nil
}

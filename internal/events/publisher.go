package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/q360-insights/research-portal/internal/model"
	"github.com/q360-insights/research-portal/pkg/logger"
)

const (
	// StreamName is the name of the portal audit stream.
	StreamName = "PORTAL_EVENTS"

	// SubjectPrefix is the prefix for all portal event subjects.
	SubjectPrefix = "portal"
)

// Publisher writes audit events to JetStream. A nil *Publisher is valid and
// drops everything, so the request path never depends on NATS being up.
type Publisher struct {
	client *Client
	logger *logger.Logger
}

// NewPublisher creates a publisher on an established connection.
func NewPublisher(client *Client, log *logger.Logger) *Publisher {
	return &Publisher{client: client, logger: log}
}

// EnsureStream creates the audit stream if it does not exist.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	if p == nil {
		return nil
	}
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Portal usage and session audit events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Subject returns the subject for an event. Event types render as dotted
// tokens so consumers can subscribe per category, e.g. portal.*.usage.>.
func Subject(tenantID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, tenantID, strings.ReplaceAll(string(eventType), "_", "."))
}

// Publish writes one event. Failures are logged, never returned to the
// request path.
func (p *Publisher) Publish(ctx context.Context, event *model.PortalEvent) {
	if p == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.Must(uuid.NewV7()).String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	if _, err := p.client.JetStream().Publish(ctx, Subject(event.TenantID, event.Type), data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("tenant_id", event.TenantID),
			zap.Error(err),
		)
	}
}

// PublishUsage records an admission decision for a tenant.
func (p *Publisher) PublishUsage(ctx context.Context, tenantID, sessionID string, decision model.Decision) {
	if p == nil {
		return
	}

	eventType := model.EventTypeUsageAdmitted
	if !decision.Admitted {
		eventType = model.EventTypeUsageDenied
	}

	p.Publish(ctx, &model.PortalEvent{
		TenantID:  tenantID,
		SessionID: sessionID,
		Type:      eventType,
		Metadata: map[string]any{
			"count":  decision.Count,
			"limit":  decision.Limit,
			"period": decision.Period,
		},
	})
}

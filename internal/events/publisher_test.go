package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/q360-insights/research-portal/internal/model"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "portal.demo.usage.denied", Subject("demo", model.EventTypeUsageDenied))
	assert.Equal(t, "portal.demo.usage.admitted", Subject("demo", model.EventTypeUsageAdmitted))
	assert.Equal(t, "portal.acme.session.started", Subject("acme", model.EventTypeSessionStarted))
	assert.Equal(t, "portal.acme.answer.failed", Subject("acme", model.EventTypeAnswerFailed))
	assert.Equal(t, "portal.acme.answered", Subject("acme", model.EventTypeAnswered))
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher

	assert.NoError(t, p.EnsureStream(context.Background()))
	p.Publish(context.Background(), &model.PortalEvent{TenantID: "demo", Type: model.EventTypeAnswered})
	p.PublishUsage(context.Background(), "demo", "sess-1", model.Decision{Admitted: true, Count: 1, Limit: 300, Period: model.PeriodDay})
}

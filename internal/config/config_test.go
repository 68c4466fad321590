package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "anthropic", cfg.DefaultLLM)
	assert.Equal(t, 32, cfg.MaxFolderDepth)
	assert.Equal(t, time.Hour, cfg.UsageSweepInterval)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("MAX_FOLDER_DEPTH", "4")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TENANT_DATABASE_JSON", `{"demo":"folder-1"}`)

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.MaxFolderDepth)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, `{"demo":"folder-1"}`, cfg.TenantDatabaseJSON)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_FOLDER_DEPTH", "not-a-number")
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("TRACING_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 32, cfg.MaxFolderDepth)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.TracingEnabled)
}

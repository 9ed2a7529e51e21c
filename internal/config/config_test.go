package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "events", cfg.Rabbit.Exchange)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	assert.Equal(t, 5, cfg.Outbox.MaxAttempts)
	assert.InDelta(t, 0.8, cfg.Payment.SuccessRate, 1e-9)
	assert.Greater(t, cfg.Payment.MaxDelay, cfg.Payment.MinDelay)
	assert.Equal(t, 20, cfg.RateLimit.RPS)
}

func TestLoadIgnoresMissingConfigFile(t *testing.T) {
	cfg, err := Load("/does/not/exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

package http

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmehdipour/order-pipeline/internal/config"
)

func TestNewServerConstructibleTwice(t *testing.T) {
	// NewServer must not touch process-global state (metric registration
	// lives in the serve command), so building two servers cannot panic.
	cfg := config.Config{}

	s1 := NewServer(cfg, nil, nil)
	s2 := NewServer(cfg, nil, nil)

	assert.NotNil(t, s1)
	assert.NotNil(t, s2)
}

package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideAlwaysApprovesAtRateOne(t *testing.T) {
	d := NewRandomDecider(1.0, 0, 0)

	for i := 0; i < 100; i++ {
		ok, err := d.Decide(context.Background(), "order-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestDecideAlwaysDeclinesAtRateZero(t *testing.T) {
	d := NewRandomDecider(0, 0, 0)

	for i := 0; i < 100; i++ {
		ok, err := d.Decide(context.Background(), "order-1")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestDecideWaitsAtLeastMinDelay(t *testing.T) {
	d := NewRandomDecider(1.0, 30*time.Millisecond, 60*time.Millisecond)

	start := time.Now()
	_, err := d.Decide(context.Background(), "order-1")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDecideStopsOnCanceledContext(t *testing.T) {
	d := NewRandomDecider(1.0, time.Minute, 2*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Decide(ctx, "order-1")
	assert.ErrorIs(t, err, context.Canceled)
}

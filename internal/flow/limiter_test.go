package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	l := NewAdaptiveLimiter(10, 0)
	assert.Equal(t, 10.0, l.Rate())

	for range 20 {
		l.OnSuccess()
	}
	assert.InDelta(t, 20.0, l.Rate(), 1e-9)

	for range 20 {
		l.OnRateLimit()
	}
	assert.InDelta(t, 2.5, l.Rate(), 1e-9)

	l.OnSuccess()
	assert.InDelta(t, 3.0, l.Rate(), 1e-9)
}

func TestAdaptiveLimiter_WaitHonorsContext(t *testing.T) {
	l := NewAdaptiveLimiter(0.001, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_BurstThenThrottle(t *testing.T) {
	l := NewLimiter(1, 2)

	assert.True(t, l.Allow("reasoner"))
	assert.True(t, l.Allow("reasoner"))
	assert.False(t, l.Allow("reasoner"), "burst of 2 exhausted")
}

func TestAllow_IndependentBuckets(t *testing.T) {
	l := NewLimiter(1, 1)

	assert.True(t, l.Allow("reasoner"))
	assert.False(t, l.Allow("reasoner"))
	assert.True(t, l.Allow("gateway"), "a drained bucket must not affect other dependencies")
}

func TestWait_HonorsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	require.True(t, l.Allow("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "slow")
	assert.Error(t, err, "wait must give up when the context expires")
}

func TestSetRPS(t *testing.T) {
	l := NewLimiter(1, 1)
	require.True(t, l.Allow("x"))

	l.SetRPS(1000)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow("x"), "retuned bucket refills at the new rate")
}

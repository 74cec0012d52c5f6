package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	return Config{
		MinInterval:  20 * time.Millisecond,
		PerMinute:    2,
		MinuteWindow: 300 * time.Millisecond,
		PerHour:      50,
		HourWindow:   3 * time.Second,
	}
}

func TestAcquireEnforcesSpacing(t *testing.T) {
	l := NewLimiter(smallConfig(), nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx, "creds"))
	}
	elapsed := time.Since(start)

	// Third call needs the 300ms rolling window to roll past the first
	// sample, which dominates the 2x20ms spacing.
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
}

func TestAcquireIndependentKeys(t *testing.T) {
	l := NewLimiter(smallConfig(), nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "a"))
	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "b"))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "keys must not share windows")
}

func TestAcquireCancelledWhileWaiting(t *testing.T) {
	cfg := smallConfig()
	cfg.MinInterval = 5 * time.Second
	l := NewLimiter(cfg, nil)

	require.NoError(t, l.Acquire(context.Background(), "creds"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx, "creds") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Acquire did not unblock after cancel")
	}
}

func TestAcquireAlreadyCancelled(t *testing.T) {
	l := NewLimiter(smallConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Acquire(ctx, "creds"), context.Canceled)
}

func TestRollingWindowAdmitsAfterExpiry(t *testing.T) {
	cfg := Config{
		MinInterval:  time.Millisecond,
		PerMinute:    1,
		MinuteWindow: 100 * time.Millisecond,
		PerHour:      100,
		HourWindow:   time.Second,
	}
	l := NewLimiter(cfg, nil)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "creds"))
	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "creds"))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

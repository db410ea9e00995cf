package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx, "https://example.com/page"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitThrottlesPerDomain(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 20, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://slow.example/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://slow.example/b"))
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	// Another domain has its own bucket and is not delayed.
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://other.example/a"))
	require.Less(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitCanceledContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx, "https://example.com"))
	cancel()
	require.Error(t, l.Wait(ctx, "https://example.com"))
}

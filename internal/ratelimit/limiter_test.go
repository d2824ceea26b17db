package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitRequest_AdmitsWithinBurstImmediately(t *testing.T) {
	l := New(map[string]Bucket{
		"send_message": {Scope: "per-conversation", RequestsPerSecond: 3, RequestsPerMinute: 100, RequestsPerHour: 1000},
	})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.LimitRequest(ctx, "send_message", "conv-1"))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestLimitRequest_DifferentKeysDoNotBlockEachOther(t *testing.T) {
	l := New(map[string]Bucket{
		"send_message": {Scope: "per-conversation", RequestsPerSecond: 1, RequestsPerMinute: 10, RequestsPerHour: 100},
	})
	ctx := context.Background()

	require.NoError(t, l.LimitRequest(ctx, "send_message", "conv-1"))
	start := time.Now()
	require.NoError(t, l.LimitRequest(ctx, "send_message", "conv-2"))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestLimitRequest_UnconfiguredOpNeverWaits(t *testing.T) {
	l := New(map[string]Bucket{})
	ctx := context.Background()
	require.NoError(t, l.LimitRequest(ctx, "anything", "k"))
}

func TestLimitRequest_CancellableWhileWaiting(t *testing.T) {
	l := New(map[string]Bucket{
		"send_message": {Scope: "per-conversation", RequestsPerSecond: 1, RequestsPerMinute: 1, RequestsPerHour: 1},
	})
	ctx := context.Background()
	require.NoError(t, l.LimitRequest(ctx, "send_message", "conv-1"))

	cctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.LimitRequest(cctx, "send_message", "conv-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimitRequest_EnforcesPerSecondWindow(t *testing.T) {
	l := New(map[string]Bucket{
		"op": {Scope: "global", RequestsPerSecond: 2, RequestsPerMinute: 1000, RequestsPerHour: 10000},
	})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.LimitRequest(ctx, "op", ""))
	}
	// third admission must have waited for the 1s window to free a slot
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

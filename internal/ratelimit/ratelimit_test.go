package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetLimit(t *testing.T) {
	b := NewBudget(2, 0, 24*time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))
	assert.ErrorIs(t, b.Acquire(ctx), ErrBudgetExhausted)
	assert.Equal(t, 2, b.GetStats()["used"])
	assert.Equal(t, 2, b.GetStats()["limit"])
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget(0, 0, time.Hour, nil)
	for i := 0; i < 50; i++ {
		require.NoError(t, b.Acquire(context.Background()))
	}
	assert.Equal(t, 50, b.GetStats()["used"])
}

func TestBudgetWindowReset(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b := NewBudget(1, 0, time.Hour, nil)
	b.now = func() time.Time { return now }
	b.resetTime = now.Add(time.Hour)

	require.NoError(t, b.Acquire(context.Background()))
	assert.ErrorIs(t, b.Acquire(context.Background()), ErrBudgetExhausted)

	now = now.Add(2 * time.Hour)
	assert.NoError(t, b.Acquire(context.Background()))
	assert.Equal(t, now.Add(time.Hour).Format(time.RFC3339), b.GetStats()["reset_time"])
}

func TestBudgetPacingHonoursContext(t *testing.T) {
	b := NewBudget(0, 1, time.Hour, nil)
	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, b.Acquire(ctx), "second request must wait a minute and hit the deadline")
}

func TestBudgetCancelledWaitKeepsBudget(t *testing.T) {
	b := NewBudget(2, 1, time.Hour, nil)
	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, b.Acquire(ctx))

	assert.Equal(t, 1, b.GetStats()["used"], "a request that never ran is not counted")
}

package enrichmodule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter without real sleeping: sleep advances
// the clock by the requested duration.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(max int, window time.Duration) (*rateLimiter, *fakeClock) {
	clock := newFakeClock()
	r := newRateLimiter(max, window)
	r.now = clock.Now
	r.sleep = clock.Sleep
	return r, clock
}

func TestRateLimiter_AdmitsUpToLimitWithoutWaiting(t *testing.T) {
	r, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
	assert.Empty(t, clock.sleeps)
}

func TestRateLimiter_BlocksUntilOldestExpires(t *testing.T) {
	r, clock := newTestLimiter(2, time.Minute)

	require.NoError(t, r.Wait(context.Background()))
	clock.now = clock.now.Add(10 * time.Second)
	require.NoError(t, r.Wait(context.Background()))

	// Third call must wait the remaining 50s of the first slot.
	require.NoError(t, r.Wait(context.Background()))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 50*time.Second, clock.sleeps[0])
}

func TestRateLimiter_SlidingWindowReleasesGradually(t *testing.T) {
	r, clock := newTestLimiter(2, time.Minute)

	require.NoError(t, r.Wait(context.Background()))
	clock.now = clock.now.Add(30 * time.Second)
	require.NoError(t, r.Wait(context.Background()))

	require.NoError(t, r.Wait(context.Background())) // waits 30s for slot 1
	require.NoError(t, r.Wait(context.Background())) // waits 30s for slot 2

	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, clock.sleeps)
}

func TestRateLimiter_WaitHonorsContextCancellation(t *testing.T) {
	r, _ := newTestLimiter(1, time.Minute)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

package enrichmodule

import (
	"context"
	"sync"
	"time"
)

// rateLimiter admits at most maxRequests starts per window, measured
// over a sliding window of request timestamps. Wait blocks (it never
// errors except on context cancellation) until a slot opens.
type rateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	stamps      []time.Time
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the caller may start a request, then records the
// start. Re-checks in a loop after each sleep so concurrent waiters
// cannot both slip through on a single expired timestamp.
func (r *rateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.prune(now)
		if len(r.stamps) < r.maxRequests {
			r.stamps = append(r.stamps, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.window - now.Sub(r.stamps[0])
		r.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps older than the window. Caller holds mu.
func (r *rateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}

package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy computes retry delays: exponential growth from Base capped at Cap,
// with optional full jitter so a fleet of agents does not reconnect in
// lockstep after a backend restart.
type Policy struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter bool
}

// Default matches the reconnect cadence used across the platform's realtime
// clients: 1s, 2s, 4s, ... capped at 30s.
var Default = Policy{
	Base:   time.Second,
	Cap:    30 * time.Second,
	Jitter: true,
}

// Delay returns the wait before retry number attempt (0-based). With Jitter
// enabled the result is uniformly drawn from [0, delay].
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}

	d := p.Base
	for i := 0; i < attempt && d < p.Cap; i++ {
		d *= 2
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}

	if p.Jitter && d > 0 {
		d = time.Duration(rand.Int63n(int64(d) + 1))
	}
	return d
}

// Sleep blocks for Delay(attempt) or until ctx is cancelled.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		// Still honor cancellation on zero delays.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package countdown

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Ticker drives an Engine at a fixed cadence and reports the remaining time
// to an observer. Correctness does not depend on the cadence being regular:
// each tick recomputes remaining time from the fixed deadline, so a long
// suspension simply produces one late tick carrying the true value.
type Ticker struct {
	engine   *Engine
	interval time.Duration
	onTick   func(remaining time.Duration)
	log      zerolog.Logger
}

// NewTicker creates a Ticker. onTick may be nil when only the expiry
// callback matters. interval defaults to one second when non-positive.
func NewTicker(engine *Engine, interval time.Duration, onTick func(time.Duration), log zerolog.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{
		engine:   engine,
		interval: interval,
		onTick:   onTick,
		log:      log.With().Str("component", "ticker").Logger(),
	}
}

// Run ticks until the engine expires or ctx is cancelled. Call in a
// goroutine.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Immediate first tick so observers see a value before the first
	// interval elapses.
	if t.fire() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			t.log.Debug().Msg("Ticker stopped")
			return
		case <-ticker.C:
			if t.fire() {
				return
			}
		}
	}
}

// fire performs one tick and reports whether the engine has expired.
func (t *Ticker) fire() bool {
	remaining := t.engine.Tick()
	if t.onTick != nil {
		t.onTick(remaining)
	}
	return t.engine.Expired()
}

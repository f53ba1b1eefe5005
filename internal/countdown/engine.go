package countdown

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/clock"
)

var (
	// ErrInvalidDeadline is returned when Start is called with a deadline
	// that is not strictly in the future.
	ErrInvalidDeadline = errors.New("countdown: deadline must be in the future")
	// ErrAlreadyStarted is returned when Start is called on an armed engine.
	ErrAlreadyStarted = errors.New("countdown: engine already started")
	// ErrAlreadyExpired is returned when Start is called after expiry.
	ErrAlreadyExpired = errors.New("countdown: engine already expired")
)

// Engine tracks a single fixed deadline. Remaining time is always derived
// from the deadline and a clock reading, never decremented by a running
// counter, so irregular or delayed ticks — a suspended machine, a stalled
// timer — cannot accumulate drift. A resume after an arbitrary suspension
// yields the true remaining time on the next tick.
type Engine struct {
	clk clock.Clock
	log zerolog.Logger

	mu       sync.Mutex
	deadline time.Time
	started  bool
	expired  bool
	onExpire func()
}

// NewEngine creates an unarmed Engine.
func NewEngine(clk clock.Clock, log zerolog.Logger) *Engine {
	return &Engine{
		clk: clk,
		log: log.With().Str("component", "countdown").Logger(),
	}
}

// OnExpire registers the expiry callback. It fires exactly once, on the
// first tick that observes zero remaining time. Register before Start.
func (e *Engine) OnExpire(fn func()) {
	e.mu.Lock()
	e.onExpire = fn
	e.mu.Unlock()
}

// Start arms the engine with an absolute deadline. The deadline must be
// strictly in the future at call time. A spent engine cannot be re-armed.
func (e *Engine) Start(deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.expired {
		return ErrAlreadyExpired
	}
	if e.started {
		return ErrAlreadyStarted
	}
	if !deadline.After(e.clk.Now()) {
		return ErrInvalidDeadline
	}

	e.deadline = deadline
	e.started = true
	e.log.Info().Time("deadline", deadline).Msg("Countdown armed")
	return nil
}

// Deadline returns the armed deadline, if any.
func (e *Engine) Deadline() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deadline, e.started
}

// Remaining returns max(0, deadline-now) without side effects. It never
// fires the expiry callback; observation-only callers (status polls) use it.
func (e *Engine) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

// Expired reports whether the expiry callback has fired.
func (e *Engine) Expired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expired
}

// Tick recomputes remaining time and, on the first observation of zero,
// fires the expiry callback. Calling Tick after expiry keeps returning zero
// without firing again.
func (e *Engine) Tick() time.Duration {
	e.mu.Lock()
	remaining := e.remainingLocked()

	var fire func()
	if e.started && remaining == 0 && !e.expired {
		e.expired = true
		fire = e.onExpire
	}
	e.mu.Unlock()

	if fire != nil {
		e.log.Info().Msg("Deadline reached")
		fire()
	}
	return remaining
}

func (e *Engine) remainingLocked() time.Duration {
	if !e.started {
		return 0
	}
	remaining := e.deadline.Sub(e.clk.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

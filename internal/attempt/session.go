package attempt

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/backoff"
	"github.com/parikshasetu/portal-agent/internal/clock"
	"github.com/parikshasetu/portal-agent/internal/countdown"
)

// SessionConfig configures StartSession.
type SessionConfig struct {
	Attempt      Attempt
	Submitter    Submitter
	Clock        clock.Clock
	TickInterval time.Duration
	Policy       backoff.Policy
	RetryLimit   int
	// OnTick receives the remaining time on every tick. Optional.
	OnTick func(time.Duration)
	Log    zerolog.Logger
}

// Session bundles the countdown and the submission controller for one
// attempt: the countdown's expiry feeds the controller's single Submit entry
// point, so timer-triggered and manual submissions share the same atomic
// transition.
type Session struct {
	Attempt Attempt
	Engine  *countdown.Engine
	Ctrl    *Controller

	cancel context.CancelFunc
}

// StartSession arms the countdown for cfg.Attempt and starts the tick loop.
// Fails if the attempt's deadline is already in the past.
func StartSession(cfg SessionConfig) (*Session, error) {
	ctrl := NewController(cfg.Attempt, cfg.Submitter, cfg.Policy, cfg.RetryLimit, cfg.Log)

	engine := countdown.NewEngine(cfg.Clock, cfg.Log)
	engine.OnExpire(func() {
		ctrl.Submit(TriggerTimerExpiry)
	})
	if err := engine.Start(cfg.Attempt.Deadline); err != nil {
		ctrl.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := countdown.NewTicker(engine, cfg.TickInterval, cfg.OnTick, cfg.Log)
	go ticker.Run(ctx)

	return &Session{
		Attempt: cfg.Attempt,
		Engine:  engine,
		Ctrl:    ctrl,
		cancel:  cancel,
	}, nil
}

// Close stops the tick loop and cancels any in-flight submission retry.
func (s *Session) Close() {
	s.cancel()
	s.Ctrl.Close()
}

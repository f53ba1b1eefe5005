package attempt

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/api"
	"github.com/parikshasetu/portal-agent/internal/backoff"
)

// Submitter sends the collected answers to the exam backend. Implemented by
// the API client.
type Submitter interface {
	SubmitAttempt(ctx context.Context, attemptID uuid.UUID, answers map[string]string) (*api.SubmitResult, error)
}

// Snapshot is a point-in-time view of the controller for observers.
type Snapshot struct {
	Attempt Attempt           `json:"attempt"`
	State   State             `json:"state"`
	Trigger Trigger           `json:"trigger,omitempty"`
	Fatal   bool              `json:"fatal"`
	Error   string            `json:"error,omitempty"`
	Result  *api.SubmitResult `json:"result,omitempty"`
}

// Controller owns one Attempt's submission state machine:
//
//	InProgress → Submitting → Submitted
//	          ↘ SubmitFailed → Submitting (retry)
//
// Submit is the single entry point for both manual clicks and timer expiry;
// its check-and-transition happens atomically under one lock, which is what
// guarantees exactly one network submission when both fire in the same tick
// window. Submitted is terminal and idempotent to re-enter.
type Controller struct {
	submitter  Submitter
	policy     backoff.Policy
	retryLimit int
	log        zerolog.Logger

	runCtx context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	att     Attempt
	state   State
	trigger Trigger
	answers map[string]string
	fatal   bool
	lastErr error
	result  *api.SubmitResult
	onState func(State)
	closed  bool
}

// NewController creates a Controller in InProgress. retryLimit bounds the
// automatic retries of timer-expiry submissions; non-positive means 1.
func NewController(att Attempt, submitter Submitter, policy backoff.Policy, retryLimit int, log zerolog.Logger) *Controller {
	if policy == (backoff.Policy{}) {
		policy = backoff.Default
	}
	if retryLimit <= 0 {
		retryLimit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		submitter:  submitter,
		policy:     policy,
		retryLimit: retryLimit,
		log: log.With().
			Str("component", "attempt_controller").
			Str("attempt_id", att.AttemptID.String()).
			Logger(),
		runCtx:  ctx,
		cancel:  cancel,
		att:     att,
		state:   StateInProgress,
		answers: make(map[string]string),
	}
}

// OnStateChange registers an observer for state transitions. Register before
// the first Submit.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// RecordAnswer stores one collected answer. Ignored once a submission is in
// flight or done.
func (c *Controller) RecordAnswer(questionID, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (c.state != StateInProgress && c.state != StateSubmitFailed) {
		return
	}
	c.answers[questionID] = answer
}

// Snapshot returns the current view of the attempt.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Attempt: c.att,
		State:   c.state,
		Trigger: c.trigger,
		Fatal:   c.fatal,
		Result:  c.result,
	}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	return snap
}

// State returns the current submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit attempts the InProgress|SubmitFailed → Submitting transition and
// starts the network submission. If a submission is already in flight or
// done, the call is a no-op returning the current state, so any interleaving
// of manual and timer-expiry submits issues exactly one network call.
func (c *Controller) Submit(trigger Trigger) State {
	c.mu.Lock()
	if c.closed || c.state == StateSubmitting || c.state == StateSubmitted {
		st := c.state
		c.mu.Unlock()
		return st
	}

	c.state = StateSubmitting
	c.trigger = trigger
	c.lastErr = nil
	c.fatal = false
	answers := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	c.mu.Unlock()

	c.log.Info().Str("trigger", string(trigger)).Msg("Submission started")
	c.notify(StateSubmitting)

	go c.runSubmission(trigger, answers)
	return StateSubmitting
}

// Close cancels any in-flight submission and rejects further ones. Called
// when the attempt view is torn down so a dangling retry cannot target a
// stale attempt.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// runSubmission performs the network call. Manual failures surface
// immediately (the retry affordance is another Submit call). Timer-expiry
// failures auto-retry with capped backoff up to retryLimit, then escalate to
// a fatal error: an exam must never silently fail to submit.
func (c *Controller) runSubmission(trigger Trigger, answers map[string]string) {
	for attemptNo := 0; ; attemptNo++ {
		result, err := c.submitter.SubmitAttempt(c.runCtx, c.att.AttemptID, answers)
		if err == nil {
			c.complete(result)
			return
		}
		if c.runCtx.Err() != nil {
			c.abandon(err)
			return
		}

		c.log.Warn().Err(err).Int("attempt", attemptNo+1).Msg("Submission failed")

		if trigger == TriggerManual {
			c.fail(err, false)
			return
		}
		if !api.IsRetryable(err) || attemptNo+1 >= c.retryLimit {
			c.fail(err, true)
			return
		}
		if c.policy.Sleep(c.runCtx, attemptNo) != nil {
			c.abandon(err)
			return
		}
	}
}

func (c *Controller) complete(result *api.SubmitResult) {
	c.mu.Lock()
	c.state = StateSubmitted
	c.result = result
	c.lastErr = nil
	c.mu.Unlock()

	c.log.Info().Msg("Submission confirmed")
	c.notify(StateSubmitted)
}

func (c *Controller) fail(err error, fatal bool) {
	c.mu.Lock()
	c.state = StateSubmitFailed
	c.lastErr = err
	c.fatal = fatal
	c.mu.Unlock()

	if fatal {
		c.log.Error().Err(err).Msg("Submission retries exhausted")
	}
	c.notify(StateSubmitFailed)
}

// abandon records a teardown-interrupted submission without notifying:
// observers belong to a view that no longer exists.
func (c *Controller) abandon(err error) {
	c.mu.Lock()
	c.state = StateSubmitFailed
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) notify(s State) {
	c.mu.Lock()
	fn := c.onState
	closed := c.closed
	c.mu.Unlock()

	if fn != nil && !closed {
		fn(s)
	}
}

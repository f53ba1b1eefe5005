package attempt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parikshasetu/portal-agent/internal/clock"
)

func TestStartSession_TimerExpirySubmits(t *testing.T) {
	sub := &fakeSubmitter{}

	att := NewAttempt(uuid.New(), uuid.New(), uuid.New(), 3600, time.Now())
	// Short deadline so the test observes a real expiry-driven submission.
	att.Deadline = time.Now().Add(100 * time.Millisecond)

	session, err := StartSession(SessionConfig{
		Attempt:      att,
		Submitter:    sub,
		Clock:        clock.System(),
		TickInterval: 10 * time.Millisecond,
		Policy:       fastPolicy,
		RetryLimit:   3,
		Log:          zerolog.Nop(),
	})
	require.NoError(t, err)
	defer session.Close()

	require.Eventually(t, func() bool {
		return session.Ctrl.State() == StateSubmitted
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, sub.callCount())
	assert.Equal(t, TriggerTimerExpiry, session.Ctrl.Snapshot().Trigger)
	assert.True(t, session.Engine.Expired())
}

func TestStartSession_PastDeadlineRejected(t *testing.T) {
	att := NewAttempt(uuid.New(), uuid.New(), uuid.New(), 60, time.Now().Add(-time.Hour))

	_, err := StartSession(SessionConfig{
		Attempt:   att,
		Submitter: &fakeSubmitter{},
		Clock:     clock.System(),
		Log:       zerolog.Nop(),
	})
	assert.Error(t, err)
}

func TestStartSession_ManualBeatsTimer(t *testing.T) {
	sub := &fakeSubmitter{}

	att := NewAttempt(uuid.New(), uuid.New(), uuid.New(), 3600, time.Now())
	att.Deadline = time.Now().Add(80 * time.Millisecond)

	session, err := StartSession(SessionConfig{
		Attempt:      att,
		Submitter:    sub,
		Clock:        clock.System(),
		TickInterval: 10 * time.Millisecond,
		Policy:       fastPolicy,
		RetryLimit:   3,
		Log:          zerolog.Nop(),
	})
	require.NoError(t, err)
	defer session.Close()

	// Manual submit lands before expiry; the later timer firing must be a
	// no-op against the terminal state.
	session.Ctrl.Submit(TriggerManual)

	require.Eventually(t, func() bool {
		return session.Ctrl.State() == StateSubmitted && session.Engine.Expired()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, sub.callCount())
	assert.Equal(t, TriggerManual, session.Ctrl.Snapshot().Trigger)
}

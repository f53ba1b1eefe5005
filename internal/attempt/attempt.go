package attempt

import (
	"time"

	"github.com/google/uuid"
)

// State is the submission state of an attempt.
type State string

const (
	StateInProgress   State = "IN_PROGRESS"
	StateSubmitting   State = "SUBMITTING"
	StateSubmitted    State = "SUBMITTED"
	StateSubmitFailed State = "SUBMIT_FAILED"
)

// Trigger identifies what initiated a submission.
type Trigger string

const (
	TriggerManual      Trigger = "manual"
	TriggerTimerExpiry Trigger = "timer_expiry"
)

// Attempt identifies one student's timed run of one exam. The deadline is
// computed once from the start time and never recomputed from remaining-time
// subtraction, so suspensions and slow ticks cannot shift it.
type Attempt struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	ExamID          uuid.UUID `json:"exam_id"`
	StudentID       uuid.UUID `json:"student_id"`
	DurationSeconds int       `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
	Deadline        time.Time `json:"deadline"`
}

// NewAttempt creates an Attempt starting at startedAt.
func NewAttempt(attemptID, examID, studentID uuid.UUID, durationSeconds int, startedAt time.Time) Attempt {
	return Attempt{
		AttemptID:       attemptID,
		ExamID:          examID,
		StudentID:       studentID,
		DurationSeconds: durationSeconds,
		StartedAt:       startedAt,
		Deadline:        startedAt.Add(time.Duration(durationSeconds) * time.Second),
	}
}

package response

// ErrCode is a typed error code enum for consistent status API error
// identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNoAttempt        ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrAttemptActive    ErrCode = "ATTEMPT_ALREADY_ACTIVE"
	ErrInvalidDeadline  ErrCode = "INVALID_DEADLINE"
	ErrAttemptNotClosed ErrCode = "ATTEMPT_NOT_CLOSED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrNoAttempt:
		return "No exam attempt is active."
	case ErrAttemptActive:
		return "An exam attempt is already active."
	case ErrInvalidDeadline:
		return "The attempt deadline is not in the future."
	case ErrAttemptNotClosed:
		return "The attempt has not been submitted yet."
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unexpected error occurred."
	}
}

package api

import "fmt"

// SubmitResult is the summary returned by the exam backend on a successful
// submission.
type SubmitResult struct {
	SubmissionID string  `json:"submissionId"`
	Score        float64 `json:"score"`
	TotalMarks   float64 `json:"totalMarks"`
	Status       string  `json:"status"`
}

// submitRequest is the body of POST /exams/{attemptId}/submit.
type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

// errorBody is the backend's error response shape. Fields are best-effort:
// not every endpoint returns a structured body.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Error is a typed API failure. Retryable errors are transport faults and
// 5xx responses; 4xx responses are contract violations and must not be
// retried.
type Error struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsRetryable reports whether err is worth retrying: any transport-level
// failure, or a server-side *Error marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*Error); ok {
		return apiErr.Retryable
	}
	// Transport errors (timeouts, refused connections) are retryable.
	return true
}

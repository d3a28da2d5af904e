package extraction

import "fmt"

// ErrorCode identifies a class of extraction failure.
type ErrorCode string

const (
	ErrModelUnavailable  ErrorCode = "MODEL_UNAVAILABLE"
	ErrModelRateLimited  ErrorCode = "MODEL_RATE_LIMITED"
	ErrModelTimeout      ErrorCode = "MODEL_TIMEOUT"
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
)

// ExtractionError is a structured error for structuring-model failures.
// Retryable codes mark transient upstream conditions; once retries are
// exhausted the invoker surfaces a terminal ErrExtractionFailed.
type ExtractionError struct {
	Code      ErrorCode
	Message   string
	ModelID   string
	Retryable bool
	Cause     error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *ExtractionError) IsRetryable() bool {
	return e.Retryable
}

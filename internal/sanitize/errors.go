package sanitize

import "fmt"

// Validation error kinds as they appear in the error response payload.
const (
	KindEmptyInput   = "Empty input"
	KindInputTooLong = "Input too long"
)

// ValidationError is a user-input failure. It is never retried and is
// reported verbatim to the caller with actionable detail.
type ValidationError struct {
	Kind      string
	Message   string
	MaxLength int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrEmptyInput reports that the trimmed input is empty.
func ErrEmptyInput(maxLength int) *ValidationError {
	return &ValidationError{
		Kind:      KindEmptyInput,
		Message:   "Input text is required",
		MaxLength: maxLength,
	}
}

// ErrInputTooLong reports that the raw input exceeds the configured maximum.
func ErrInputTooLong(got, maxLength int) *ValidationError {
	return &ValidationError{
		Kind:      KindInputTooLong,
		Message:   fmt.Sprintf("Input length (%d characters) exceeds maximum allowed length of %d characters", got, maxLength),
		MaxLength: maxLength,
	}
}

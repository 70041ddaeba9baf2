package timer

import "fmt"

// Error codes returned by the validation functions.
const (
	CodeInvalidDuration = "INVALID_DURATION"
	CodeInvalidFormat   = "INVALID_FORMAT"
)

// Sentinel errors for errors.Is matching. Returned errors carry the same code
// plus request-specific details.
var (
	ErrInvalidDuration = &Error{Code: CodeInvalidDuration, Message: "invalid duration"}
	ErrInvalidFormat   = &Error{Code: CodeInvalidFormat, Message: "invalid time format"}
)

// Error is a validation failure with a stable code that callers can branch on.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Is reports whether target has the same code, so wrapped detail errors
// match the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func invalidDuration(format string, v ...interface{}) *Error {
	return &Error{Code: CodeInvalidDuration, Message: ErrInvalidDuration.Message, Details: fmt.Sprintf(format, v...)}
}

func invalidFormat(format string, v ...interface{}) *Error {
	return &Error{Code: CodeInvalidFormat, Message: ErrInvalidFormat.Message, Details: fmt.Sprintf(format, v...)}
}

package chat

import "fmt"

// ValidationError marks failures detected before any provider call: missing
// provider/model/API key, unknown persona or prompt, bad template
// variables. Callers map it to a client-error status; it is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

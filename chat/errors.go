package chat

import "errors"

// ValidationError reports a send that was rejected before anything changed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "message not sent: " + e.Reason
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

package provider

import (
	"errors"
	"fmt"
)

// RequestError is returned when the endpoint answers with a non-success status.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
}

// TransportError wraps a network-level failure: refused connections, DNS
// errors, sockets closed mid-read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network request failed (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is or wraps a *RequestError.
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

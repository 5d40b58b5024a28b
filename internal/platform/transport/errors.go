package transport

import (
	"errors"
	"fmt"
)

// TransportError is a failure before any envelope was received: DNS, dial,
// timeout, cancelled context, or an unreadable success body.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ApplicationError is an envelope with success=false, or a non-2xx response
// without a usable envelope.
type ApplicationError struct {
	Status   int
	Message  string
	Envelope *Envelope
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("backend rejected request (status %d): %s", e.Status, e.Message)
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsApplication reports whether err is, or wraps, an ApplicationError.
func IsApplication(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/emr/console/internal/platform/transport"
)

var (
	// ErrConflict is matched by a MutationError of kind KindConflict.
	ErrConflict = errors.New("a mutation is already in flight for this record")
	// ErrSuperseded is returned to the caller of a fetch whose result was
	// discarded because a newer fetch was issued after it.
	ErrSuperseded = errors.New("fetch superseded by a newer request")
)

// Messages shown when the backend gives nothing better.
const (
	transportMessage = "Unable to reach the server. Check your connection and try again."
	conflictMessage  = "This record is already being saved. Please wait."
)

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindApplication ErrorKind = "application"
	KindValidation  ErrorKind = "validation"
	KindConflict    ErrorKind = "conflict"
)

// MutationError is returned by Coordinator.Submit for every failure.
type MutationError struct {
	Kind     ErrorKind
	Op       MutationKind
	RecordID string
	Message  string
	Err      error
}

func (e *MutationError) Error() string {
	target := string(e.Op)
	if e.RecordID != "" {
		target += " " + e.RecordID
	}
	return fmt.Sprintf("%s %s failed: %s", target, e.Kind, e.Message)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func (e *MutationError) Is(target error) bool {
	return target == ErrConflict && e.Kind == KindConflict
}

// ValidationError is a local pre-flight failure. It is never sent to the
// backend.
type ValidationError struct {
	// Fields maps a field name to its problem.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, n := range names {
		msgs = append(msgs, e.Fields[n])
	}
	return strings.Join(msgs, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Classify maps an error from the gateway or the validator onto an ErrorKind.
func Classify(err error) ErrorKind {
	var (
		ve *ValidationError
		me *MutationError
	)
	switch {
	case errors.As(err, &me):
		return me.Kind
	case errors.As(err, &ve):
		return KindValidation
	case transport.IsApplication(err):
		return KindApplication
	default:
		return KindTransport
	}
}

// UserMessage returns the text that should be shown for err.
func UserMessage(err error) string {
	var (
		me *MutationError
		ae *transport.ApplicationError
		ve *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &me):
		return me.Message
	case errors.As(err, &ae):
		if ae.Message != "" {
			return ae.Message
		}
		return transport.DefaultErrorMessage
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to respond. Please try again."
	default:
		return transportMessage
	}
}

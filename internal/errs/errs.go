package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error by the scope it affects.
type Kind string

const (
	Configuration     Kind = "ConfigurationError"
	Navigation        Kind = "NavigationError"
	Assertion         Kind = "AssertionError"
	Timeout           Kind = "TimeoutError"
	Aborted           Kind = "AbortedError"
	AnnotationWarning Kind = "AnnotationWarning"
	Internal          Kind = "InternalError"
)

// ErrTestsFailed is returned by the run command when at least one test case failed.
var ErrTestsFailed = errors.New("one or more test cases failed")

// Error is a classified error. Assertion errors carry the expected substring
// and the value that was actually observed.
type Error struct {
	Kind     Kind
	Message  string
	Subject  string
	Expected string
	Actual   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == Assertion {
		return fmt.Sprintf("expected %s to include %q but got %q", e.Subject, e.Expected, e.Actual)
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a classified error with message.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error with message and cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// NewAssertion creates an assertion failure for subject (e.g. "title").
func NewAssertion(subject, expected, actual string, cause error) error {
	return &Error{
		Kind:     Assertion,
		Subject:  subject,
		Expected: expected,
		Actual:   actual,
		Err:      cause,
	}
}

// KindOf returns the kind of err. Bare context errors map to Timeout and
// Aborted; anything else unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) && classified.Kind != "" {
		return classified.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Aborted
	}
	return Internal
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// FromContext classifies the reason a test case was interrupted.
func FromContext(ctx context.Context, message string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Timeout, message, err)
	}
	return Wrap(Aborted, message, err)
}

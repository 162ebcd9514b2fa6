package optimization

import (
	"errors"
	"fmt"
)

// Kind classifies an optimization error so callers can react to the
// category without matching on message text.
type Kind int

const (
	// KindUnknown is the zero value; errors without an explicit kind.
	KindUnknown Kind = iota
	// KindConfiguration covers invalid spaces, bad hyperparameters and
	// unsupported component combinations detected at construction.
	KindConfiguration
	// KindOutOfBounds covers points that violate the declared Space.
	KindOutOfBounds
	// KindUnsupportedAcquisition covers acquisition functions that need
	// a predictive uncertainty the chosen surrogate cannot supply.
	KindUnsupportedAcquisition
	// KindEvaluation covers failed or timed-out objective evaluations.
	KindEvaluation
	// KindPersistence covers corrupt or incompatible serialized state.
	KindPersistence
)

// String returns a stable label for the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindOutOfBounds:
		return "out_of_bounds"
	case KindUnsupportedAcquisition:
		return "unsupported_acquisition"
	case KindEvaluation:
		return "evaluation"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is an optimization error carrying a kind and optional
// operation/component context.
type Error struct {
	// Kind is the error category.
	Kind Kind
	// Message describes what went wrong.
	Message string
	// Op is the operation that produced the error.
	Op string
	// Component is the package or subsystem where it happened.
	Component string
	// Err is the wrapped cause, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation records the operation that produced the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent records the subsystem where the error happened.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// E creates a new error of the given kind.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef creates a new error of the given kind with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error, attaching a kind and context
// message. Returns nil when err is nil.
func WrapError(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether any error in err's chain is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

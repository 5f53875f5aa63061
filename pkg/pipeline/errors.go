package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateName    = errors.New("pipeline: duplicate element name")
	ErrIncompatibleCaps = errors.New("pipeline: incompatible capabilities")
	ErrElementCreation  = errors.New("pipeline: element creation failed")
	ErrNoSuchPort       = errors.New("pipeline: no such port")
	ErrNotInGraph       = errors.New("pipeline: element not in graph")
	ErrDirection        = errors.New("pipeline: wrong port direction")
	ErrStateChange      = errors.New("pipeline: state change failed")
	ErrBusClosed        = errors.New("pipeline: bus closed")
	ErrNotLinked        = errors.New("pipeline: port not linked")
	ErrNotSeekable      = errors.New("pipeline: not seekable")
	ErrNoProducer       = errors.New("pipeline: upstream element produces no data")
	ErrPortInUse        = errors.New("pipeline: src port already linked")
)

// Error is the payload of error and warning events.
type Error struct {
	// Message is the human readable description.
	Message string
	// Debug carries extra detail for developers, such as the URI or the
	// failing call. It may be empty.
	Debug string
	// Err is the underlying error, if any.
	Err error
}

// NewError returns an Error wrapping err.
func NewError(msg, debug string, err error) *Error {
	return &Error{Message: msg, Debug: debug, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// DebugOrNone returns Debug, or "none" when it is empty.
func (e *Error) DebugOrNone() string {
	if e.Debug == "" {
		return "none"
	}
	return e.Debug
}

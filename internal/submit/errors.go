package submit

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeInterrupted   = "INTERRUPTED"
	CodeSerialization = "SERIALIZATION_ERROR"
	CodeTransport     = "TRANSPORT_ERROR"
)

// Sentinels matched by errors.Is against any *Error of the same code.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInterrupted   = errors.New("submission interrupted")
	ErrSerialization = errors.New("document serialization error")
	ErrTransport     = errors.New("transport error")
)

var sentinels = map[string]error{
	CodeConfiguration: ErrConfiguration,
	CodeInterrupted:   ErrInterrupted,
	CodeSerialization: ErrSerialization,
	CodeTransport:     ErrTransport,
}

// Error is returned by every failing submission stage.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's code.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && target == sentinel
}

// Error constructors for each failure stage

func NewConfigurationError(message string, err error) *Error {
	return &Error{
		Code:    CodeConfiguration,
		Message: message,
		Err:     err,
	}
}

func NewInterruptedError(err error) *Error {
	return &Error{
		Code:    CodeInterrupted,
		Message: "interrupted while waiting for a permit",
		Err:     err,
	}
}

func NewSerializationError(err error) *Error {
	return &Error{
		Code:    CodeSerialization,
		Message: "failed to serialize document",
		Err:     err,
	}
}

func NewTransportError(err error) *Error {
	return &Error{
		Code:    CodeTransport,
		Message: "failed to send document",
		Err:     err,
	}
}

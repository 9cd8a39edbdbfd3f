// Package domainerrors defines the error taxonomy shared by all services.
//
// Services attach a Code to every error they return so the transport layer
// can translate failures into responses without inspecting message text.
// Stores return pkg/platform/sentinel errors; services translate those into
// coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers.
type Code string

const (
	// CodeValidation marks a business-rule or precondition violation.
	// The operation had no side effects.
	CodeValidation Code = "validation"
	// CodeConflict marks a uniqueness or state conflict.
	CodeConflict Code = "conflict"
	// CodeNotFound marks a missing entity reference.
	CodeNotFound Code = "not_found"
	// CodeForbidden marks an ownership/authority guard failure.
	CodeForbidden Code = "forbidden"
	// CodeExternalService marks a signer/registrar/extractor failure. The
	// triggering transaction has been rolled back.
	CodeExternalService Code = "external_service"
	// CodeInvariantViolation marks a broken model invariant. Model
	// constructors return these; services usually re-code them.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New returns a coded error with the given message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf returns a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, wrapped: err}
}

// Wrapf annotates err with a code and a formatted message.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// Coded reports whether the chain carries a coded error at all.
func Coded(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal when
// the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

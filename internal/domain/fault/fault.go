// Package fault defines the error taxonomy shared by the matchmaking,
// match and scenario components.
//
// Every error that may reach a client is a *Error carrying a Kind (one of the
// sentinels below, usable with errors.Is) and a stable wire Code. Only the
// session router turns these into outbound error messages.
package fault

import (
	"errors"
	"fmt"
)

// Kinds.
var (
	// ErrValidation marks malformed or disallowed requests. No state is mutated.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks unknown or inactive targets. No state is mutated.
	ErrNotFound = errors.New("not found")
	// ErrResourceUnavailable marks a collaborator that could not supply what
	// the operation needs.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrInvariant marks an internal bug. It is logged and never sent to clients.
	ErrInvariant = errors.New("invariant violation")
)

// CodeInternal is reported for errors that carry no wire code.
const CodeInternal = "internal_error"

// Error is a classified error.
type Error struct {
	Op   string
	Kind error
	Code string
	Err  error
}

// New returns a classified error without a cause.
func New(op string, kind error, code string) *Error {
	return &Error{Op: op, Kind: kind, Code: code}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(op string, kind error, code string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Code: code, Err: err}
}

func (e *Error) Error() string {
	msg := e.Code
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Is matches another *Error by code, so package sentinels built with New
// compare equal to errors derived from them with With.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// With returns a copy of e annotated with op and an optional cause.
func (e *Error) With(op string, cause error) *Error {
	c := *e
	c.Op = op
	c.Err = cause
	return &c
}

// CodeOf returns the wire code of err, or CodeInternal.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Code != "" {
		return fe.Code
	}
	return CodeInternal
}

// Public reports whether err may be described to a client.
func Public(err error) bool {
	if err == nil || errors.Is(err, ErrInvariant) {
		return false
	}
	var fe *Error
	return errors.As(err, &fe)
}

// Package errx provides application error kinds that map cleanly to HTTP status codes.
// Every layer wraps with its own Op and forwards the Kind of the error it received,
// so the outermost error carries both the full operation trail and the original kind.

package errx

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Conflict
	Invalid
	Unavailable
	Internal
)

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case Invalid:
		return "Invalid"
	case Unavailable:
		return "Unavailable"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns a caller-facing message for err.
//
// For NotFound, Conflict and Invalid it is the message of the root cause
// below the innermost *Error, which is written for users (validation text,
// "link not found"). Store and unknown failures never leak their cause.
func Message(err error) string {
	if err == nil {
		return ""
	}

	switch KindOf(err) {
	case NotFound, Conflict, Invalid:
		return rootMessage(err)
	case Unavailable:
		return "service temporarily unavailable"
	default:
		return "an unexpected error occurred"
	}
}

func rootMessage(err error) string {
	var inner *Error
	for {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		inner = e
		if e.Err == nil {
			break
		}
		err = e.Err
	}
	if inner == nil || inner.Err == nil {
		return err.Error()
	}
	return inner.Err.Error()
}

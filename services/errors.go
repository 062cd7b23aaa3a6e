package services

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindAuth
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "unauthorized"
	case KindAuthorization:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is the error type every service method returns. Message is safe to
// show to callers; Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrUnauthorized = &Error{Kind: KindAuth, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindAuthorization, Message: "forbidden"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInternal     = &Error{Kind: KindServer, Message: "internal server error"}
)

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Err: err}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindServer, Message: msg, Err: err}
}

// KindOf reports the kind of err; anything that is not an *Error is a server error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// PublicMessage is the text a caller may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindServer {
		return e.Message
	}
	return ErrInternal.Message
}

package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures for transport mapping.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// Error carries a client-safe message and an optional cause.
// Only the message is meant to reach clients in production.
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

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Validation(msg string) error { return newError(KindValidation, msg, nil) }

func NotFound(msg string) error { return newError(KindNotFound, msg, nil) }

func Forbidden(msg string) error { return newError(KindForbidden, msg, nil) }

func Conflict(msg string) error { return newError(KindConflict, msg, nil) }

func Unauthorized(msg string) error { return newError(KindUnauthorized, msg, nil) }

func RateLimited(msg string) error { return newError(KindRateLimited, msg, nil) }

// Internal wraps an unexpected infrastructure failure.
func Internal(msg string, cause error) error { return newError(KindInternal, msg, cause) }

// KindOf returns the kind of the first domain error in the chain, or internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message, falling back to fallback for
// errors that are not domain errors.
func MessageOf(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}

// IsKind reports whether err is a domain error of kind k.
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}

// Package apierr defines the error taxonomy shared by the client, the poller
// and the pipeline orchestrator.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind classifies an error so callers can branch without string matching.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindNotFound          Kind = "not_found"
	KindRateLimit         Kind = "rate_limit"
	KindServer            Kind = "server"
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindRemoteJob         Kind = "remote_job"
	KindPersistentFailure Kind = "persistent_failure"
	KindCanceled          Kind = "canceled"
	KindUnknown           Kind = "unknown"
)

// Error is the concrete error type returned by every package in this module.
type Error struct {
	Kind       Kind
	Op         string // e.g. "POST /storyboard/create" or "storyboard.create"
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s: %s error (status %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error around err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation is shorthand for a local parameter error. It never reaches the wire.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// FromStatus maps a non-2xx HTTP status to its Kind.
func FromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindServer
	}
}

// FromTransport classifies an error returned by http.Client.Do.
func FromTransport(op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return Wrap(KindCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindTimeout, op, err)
	}
	return Wrap(KindNetwork, op, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether a status fetch that failed with err is worth
// repeating on the next poll iteration.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit, KindServer, KindTimeout:
		return true
	}
	return false
}

// IsRetryable reports whether a mutating call may be retried by the caller.
// Only rate limiting and network failures qualify.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit:
		return true
	}
	return false
}

// RetryAfterOf returns the server supplied retry hint, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// MessageOf returns the human readable message without the kind prefix.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

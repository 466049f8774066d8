// Package apperr defines the error taxonomy surfaced by the chat pipeline.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies a failure so the HTTP layer can pick a status without
// looking at internal state.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInitialization
	KindAggregation
	KindTimeout
	KindCanceled
)

// StatusClientClosedRequest is the non-standard status used when the caller
// went away before the completion finished.
const StatusClientClosedRequest = 499

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindInitialization:
		return "initialization_error"
	case KindAggregation:
		return "aggregation_error"
	case KindTimeout:
		return "timeout_error"
	case KindCanceled:
		return "canceled"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps the kind onto a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInitialization:
		return http.StatusServiceUnavailable
	case KindAggregation:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a caller-visible request rejection.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Initialization wraps an engine or template load failure.
func Initialization(err error) *Error {
	return &Error{Kind: KindInitialization, Message: "inference engine is unavailable", Err: err}
}

// Aggregation wraps a generation stream that produced nothing usable.
func Aggregation(err error) *Error {
	return &Error{Kind: KindAggregation, Message: "inference engine returned no output", Err: err}
}

// Timeout wraps an exceeded request deadline.
func Timeout(err error) *Error {
	return &Error{Kind: KindTimeout, Message: "request exceeded its time budget", Err: err}
}

// Canceled wraps a request abandoned by its caller.
func Canceled(err error) *Error {
	return &Error{Kind: KindCanceled, Message: "request canceled by client", Err: err}
}

// KindOf classifies err. Context errors map onto Timeout and Canceled;
// anything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch KindOf(err) {
	case KindTimeout:
		return "request exceeded its time budget"
	case KindCanceled:
		return "request canceled by client"
	default:
		return "internal server error"
	}
}

package checkout

import (
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindExternal      Kind = "external"
)

// Error is the outcome of a failed handoff. Message is safe to show to the
// shopper; Err carries the underlying detail.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors unwrap to the underlying error.
func (e *Error) Cause() error { return e.Err }

func (e *Error) Status() int {
	if e.Kind == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return "cart_empty"
	case KindConfiguration:
		return "checkout_not_configured"
	default:
		return "checkout_failed"
	}
}

func (e *Error) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// ProcessorError is an error reported by the payment processor itself.
type ProcessorError struct {
	Type       string
	Code       string
	Message    string
	HTTPStatus int
	RequestID  string
}

func (e *ProcessorError) Error() string { return e.Message }

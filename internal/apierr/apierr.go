// Package apierr classifies errors the control plane surfaces to callers.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the four boundary error kinds the control plane may return.
type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidState
	BadRequest
)

// Error is a classified error carrying a Kind and a human message.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.err }

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) error {
	return &Error{Kind: InvalidState, Msg: fmt.Sprintf(format, args...)}
}

func BadRequestf(format string, args ...any) error {
	return &Error{Kind: BadRequest, Msg: fmt.Sprintf(format, args...)}
}

func Internalf(cause error, format string, args ...any) error {
	return &Error{Kind: Internal, Msg: fmt.Sprintf(format, args...), err: cause}
}

// KindOf extracts the Kind of err, defaulting to Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code the control plane responds with.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case InvalidState:
		return http.StatusConflict
	case BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

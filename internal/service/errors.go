package service

import (
	"context"
	"errors"
	"fmt"

	"fanwiki/internal/repository"
)

type Code int

const (
	CodeInternal Code = iota
	CodeBadRequest
	CodeUnauthorized
	CodeForbidden
	CodeNotFound
	CodeConflict
	CodeRequestTimeout
)

func (c Code) String() string {
	switch c {
	case CodeBadRequest:
		return "bad request"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeForbidden:
		return "forbidden"
	case CodeNotFound:
		return "not found"
	case CodeConflict:
		return "conflict"
	case CodeRequestTimeout:
		return "request timeout"
	default:
		return "internal server error"
	}
}

// Error is the failure every service operation reports. Message is safe to
// show to the user; Err carries the cause for the logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func BadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message}
}

func Unauthorized() *Error {
	return &Error{Code: CodeUnauthorized, Message: "you need to be logged in to do that"}
}

func Forbidden() *Error {
	return &Error{Code: CodeForbidden, Message: "you are not allowed to do that"}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal server error", Err: err}
}

// CodeOf classifies err. Unknown errors are internal.
func CodeOf(err error) Code {
	var svcErr *Error
	switch {
	case err == nil:
		return CodeInternal
	case errors.As(err, &svcErr):
		return svcErr.Code
	case errors.Is(err, context.DeadlineExceeded):
		return CodeRequestTimeout
	case errors.Is(err, repository.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, repository.ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return CodeOf(err).String()
}

// Package domainerrors defines the typed error vocabulary shared by the
// resolution engine, its stores and the transport layer.
//
// Services return *Error values (optionally wrapping a cause) so callers can
// branch on the Code without string matching. Stores return sentinel errors
// from pkg/platform/sentinel, which services translate into a Code here.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	CodeNotFound                       Code = "not_found"
	CodeTemplateMalformed              Code = "template_malformed"
	CodeOverrideConflict               Code = "override_conflict"
	CodeUnsupportedRedirectionStrategy Code = "unsupported_redirection_strategy"
	CodeChallengeExpired               Code = "challenge_expired"
	CodeInvariantViolation             Code = "invariant_violation"
	CodeInvalidState                   Code = "invalid_state"
	CodeBadRequest                     Code = "bad_request"
	CodeValidation                     Code = "validation_error"
	CodeConflict                       Code = "conflict"
	CodeUnauthorized                   Code = "unauthorized"
	CodeInternal                       Code = "internal_error"
)

// Error is a domain error carrying a Code, a caller-safe message and an
// optional cause.
type Error struct {
	Code    Code
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

// New creates a domain error with the given code.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
// A nil err still produces an error so callers never lose the classification.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err (or anything it wraps) is a domain error with code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HasCode reports whether any domain error in the chain carries code. Unlike Is
// it keeps looking past an outer domain error with a different code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost domain code in err's chain, or CodeInternal
// for foreign errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message of the outermost domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// IsConfiguration reports whether the code describes a configuration defect.
// Configuration errors are permanent and never retried.
func IsConfiguration(code Code) bool {
	switch code {
	case CodeTemplateMalformed, CodeOverrideConflict, CodeUnsupportedRedirectionStrategy:
		return true
	}
	return false
}

// ToHTTPStatus maps a code onto an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeChallengeExpired:
		return http.StatusGone
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidState, CodeConflict:
		return http.StatusConflict
	case CodeUnsupportedRedirectionStrategy:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr defines the application error taxonomy shared by the
// orchestration core. Handlers map codes to HTTP statuses via pkg/response.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	// CodeNotFound means the referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidReference means the given identifier is malformed.
	CodeInvalidReference Code = "invalid_reference"
	// CodeAlreadyRecording means an active recording exists for the participant.
	CodeAlreadyRecording Code = "already_recording"
	// CodeInvalidState means the requested lifecycle transition is illegal.
	CodeInvalidState Code = "invalid_state"
	// CodeTokenIssuance means the media server access token could not be issued. Retryable.
	CodeTokenIssuance Code = "token_issuance_failed"
	// CodeArtifactNotFound means the recording object is absent from storage.
	CodeArtifactNotFound Code = "artifact_not_found"
	// CodeAccessDenied means the caller does not own or belong to the room.
	CodeAccessDenied Code = "access_denied"
	// CodeUpstream means the media server or object store is unreachable. Retryable.
	CodeUpstream Code = "upstream_unavailable"
	// CodeInternal is an unclassified server-side failure.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-facing message and an optional cause.
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

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error keeping the cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of err, or CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// MessageOf returns the caller-facing message, or a generic one for
// unclassified errors so internal details never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

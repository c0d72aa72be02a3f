// Package apperr is the error taxonomy shared by the API, the generation
// pipeline and the client. A Kind fixes the wire code, the HTTP status and the
// message shown to the user; the wrapped cause is only ever logged.
package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
	KindNoContent
	KindTimeout
	KindInvalidJSON
	KindResponseValidation
	KindCountMismatch
	KindSettingsMismatch
	KindDatabase
)

// Code is the machine-readable value of the "code" field in error bodies.
type Code string

const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeOpenAI           Code = "OPENAI_ERROR"
	CodeNoContent        Code = "NO_CONTENT"
	CodeTimeout          Code = "TIMEOUT_ERROR"
	CodeModelInvalidJSON Code = "MODEL_INVALID_JSON"
	CodeModelValidation  Code = "MODEL_VALIDATION_ERROR"
	CodeCountMismatch    Code = "COUNT_MISMATCH"
	CodeSettingsMismatch Code = "SETTINGS_MISMATCH"
	CodeDatabase         Code = "DATABASE_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
)

func (k Kind) Code() Code {
	switch k {
	case KindUnauthorized:
		return CodeUnauthorized
	case KindForbidden:
		return CodeForbidden
	case KindValidation:
		return CodeValidation
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	case KindUnavailable:
		return CodeOpenAI
	case KindNoContent:
		return CodeNoContent
	case KindTimeout:
		return CodeTimeout
	case KindInvalidJSON:
		return CodeModelInvalidJSON
	case KindResponseValidation:
		return CodeModelValidation
	case KindCountMismatch:
		return CodeCountMismatch
	case KindSettingsMismatch:
		return CodeSettingsMismatch
	case KindDatabase:
		return CodeDatabase
	case KindInternal:
		return CodeInternal
	}
	return CodeInternal
}

func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNoContent, KindInvalidJSON, KindResponseValidation, KindCountMismatch, KindSettingsMismatch:
		return http.StatusBadGateway
	case KindDatabase, KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Message is the long, user-facing description for a kind.
func (k Kind) Message() string {
	switch k {
	case KindUnauthorized:
		return "Authentication failed. Please log in again."
	case KindForbidden:
		return "You do not have permission to access this resource."
	case KindValidation:
		return "The provided data is invalid. Please check your input."
	case KindNotFound:
		return "The requested resource was not found."
	case KindConflict:
		return "The request conflicts with existing data."
	case KindUnavailable:
		return "AI service is temporarily unavailable. Please try again in a moment."
	case KindNoContent:
		return "The AI service returned an empty answer. Please try again."
	case KindTimeout:
		return "Request timed out. Please try again."
	case KindInvalidJSON:
		return "The AI returned a malformed answer. Please try generating again."
	case KindResponseValidation:
		return "The AI returned questions in an unexpected shape. Please try generating again."
	case KindCountMismatch:
		return "The AI returned a different number of questions than requested. Please try again."
	case KindSettingsMismatch:
		return "The AI ignored some of the requested settings. Please try again."
	case KindDatabase:
		return "Database error occurred. Please try again later."
	case KindInternal:
		return "An internal error occurred. Please try again later."
	}
	return "An unexpected error occurred. Please try again."
}

// Retryable reports whether the user should be offered a manual retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindUnavailable, KindNoContent, KindTimeout, KindInvalidJSON,
		KindResponseValidation, KindCountMismatch, KindSettingsMismatch,
		KindDatabase, KindInternal, KindValidation:
		return true
	case KindUnauthorized, KindForbidden, KindNotFound, KindConflict:
		return false
	}
	return false
}

// Error carries a Kind, a short summary (the "error" field), optional
// structured details and the underlying cause.
type Error struct {
	Kind    Kind
	Msg     string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func WithDetails(kind Kind, msg string, details any) *Error {
	return &Error{Kind: kind, Msg: msg, Details: details}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindFromCode maps a wire code back to a kind; unknown codes are internal.
func KindFromCode(c Code) Kind {
	for k := KindInternal; k <= KindDatabase; k++ {
		if k.Code() == c {
			return k
		}
	}
	return KindInternal
}

// From coerces any error into an *Error. Errors without a kind become
// internal errors; context deadlines become timeouts.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, "Request timed out", err)
	}
	return Wrap(KindInternal, "Internal server error", err)
}

// Body is the JSON error envelope returned by every endpoint.
type Body struct {
	Error   string `json:"error"`
	Code    Code   `json:"code"`
	Details any    `json:"details,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Body() Body {
	return Body{Error: e.Msg, Code: e.Kind.Code(), Details: e.Details, Message: e.Kind.Message()}
}

// Write sends err as a JSON error body with the status of its kind.
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Kind.Status())
	_ = json.NewEncoder(w).Encode(e.Body())
}

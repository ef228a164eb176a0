package llm

import (
	"errors"
	"fmt"
)

// ErrorResponse represents an error returned by the HTTP API.
type ErrorResponse struct {
	Error string    `json:"error"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// ErrorKind classifies a CompletionError.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindCanceled  ErrorKind = "canceled"
	KindModel     ErrorKind = "model"
	KindProvider  ErrorKind = "provider"
	KindMalformed ErrorKind = "malformed"

	// Kinds reported for the other two error types.
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
)

// CompletionError is returned when a completion request fails before or
// during streaming.
type CompletionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CompletionError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("completion error [%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("completion error [%s]: %s", e.Kind, e.Message)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// AuthError is returned when the API credential is missing or rejected.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return "authentication error: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when a request parameter is out of range.
type ValidationError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: must be between %d and %d", e.Field, e.Value, e.Min, e.Max)
}

// KindOf maps any error from the completion path onto an ErrorKind so the
// presentation layers can label it.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return KindAuth
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}

	var completionErr *CompletionError
	if errors.As(err, &completionErr) {
		return completionErr.Kind
	}

	return KindProvider
}

// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation        ErrorType = iota // Malformed or out-of-range input, never retried
	ErrorTypeNotFound                           // Unknown meeting or participant
	ErrorTypeAuthorization                      // Actor is not a participant or lacks the role
	ErrorTypeConflict                           // Time overlap or an already answered request
	ErrorTypeInvalidTransition                  // Status change absent from the transition table
	ErrorTypeInternal                           // Internal errors
	ErrorTypeUnavailable                        // Store or queue unavailable, retried with backoff
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeValidation:        "validation",
	ErrorTypeNotFound:          "not_found",
	ErrorTypeAuthorization:     "authorization",
	ErrorTypeConflict:          "conflict",
	ErrorTypeInvalidTransition: "invalid_transition",
	ErrorTypeInternal:          "internal",
	ErrorTypeUnavailable:       "unavailable",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Sentinel errors shared by the store and service layers.
var (
	ErrMeetingNotFound    = errors.New("meeting not found")
	ErrInternal           = errors.New("internal error")
	ErrRevisionMismatch   = errors.New("revision mismatch")
	ErrUnmarshal          = errors.New("unmarshal error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrValidationFailed   = errors.New("validation failed")
	ErrJobNotFound        = errors.New("job not found")
	ErrIdempotencyReuse   = errors.New("idempotency key reused")
)

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping

	// From and To are set on invalid state transition errors.
	From string
	To   string
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	switch {
	case errors.Is(err, ErrMeetingNotFound), errors.Is(err, ErrJobNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrServiceUnavailable):
		return ErrorTypeUnavailable
	case errors.Is(err, ErrValidationFailed):
		return ErrorTypeValidation
	case errors.Is(err, ErrRevisionMismatch):
		return ErrorTypeConflict
	}
	return ErrorTypeInternal // default fallback
}

// IsRetryable reports whether the caller or queue machinery should retry err.
// Only transient infrastructure failures and revision conflicts qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRevisionMismatch) {
		return true
	}
	switch GetErrorType(err) {
	case ErrorTypeUnavailable:
		return true
	default:
		return false
	}
}

// AsDomainError extracts the DomainError from err, if any.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

// NewAuthorizationError never names the resource so it cannot leak the existence of
// another tenant's meeting.
func NewAuthorizationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeAuthorization, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

// NewInvalidStateTransitionError reports the current and requested status.
func NewInvalidStateTransitionError[S ~string](from, to S) *DomainError {
	return &DomainError{
		Type:    ErrorTypeInvalidTransition,
		Message: fmt.Sprintf("cannot transition meeting from %s to %s", from, to),
		From:    string(from),
		To:      string(to),
	}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}

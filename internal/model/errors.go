package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates a rejected mutation; the entity is unchanged.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates an operation targeted an unknown id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeCapacityExceeded indicates the per-slide hotspot limit was hit.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodePersistence indicates a row-store call failed. Pending changes
	// stay queued for the next flush.
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"

	// ErrCodeNotInitialized indicates an operation ran before its
	// dependencies (active slide, adapter, store) were wired.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"
)

// Error is the coded error returned by the store, adapter and syncer.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind and ID identify the affected entity, when there is one.
	Kind EntityKind
	ID   string

	// Field is the offending field path for validation errors.
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ID != "" {
		msg = fmt.Sprintf("%s (%s=%s)", msg, kindLabel(e.Kind), e.ID)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s [field %s]", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func kindLabel(k EntityKind) string {
	if k == "" {
		return "id"
	}
	return string(k)
}

// NewValidationError reports a rejected mutation on field.
func NewValidationError(kind EntityKind, id, field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, Kind: kind, ID: id, Field: field}
}

// NewNotFoundError reports an unknown entity id.
func NewNotFoundError(kind EntityKind, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "entity not found", Kind: kind, ID: id}
}

// NewCapacityError reports that slideID already holds max hotspots.
func NewCapacityError(slideID string, max int) *Error {
	return &Error{
		Code:    ErrCodeCapacityExceeded,
		Message: fmt.Sprintf("slide already holds the maximum of %d hotspots", max),
		Kind:    KindSlide,
		ID:      slideID,
	}
}

// NewPersistenceError wraps a failed row-store call.
func NewPersistenceError(op string, err error) *Error {
	return &Error{Code: ErrCodePersistence, Message: op, Err: err}
}

// NewNotInitializedError reports a missing dependency.
func NewNotInitializedError(what string) *Error {
	return &Error{Code: ErrCodeNotInitialized, Message: what}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsCapacityExceeded reports whether err is a capacity error.
func IsCapacityExceeded(err error) bool { return hasCode(err, ErrCodeCapacityExceeded) }

// IsPersistence reports whether err is a persistence failure.
func IsPersistence(err error) bool { return hasCode(err, ErrCodePersistence) }

// IsNotInitialized reports whether err is a missing-dependency error.
func IsNotInitialized(err error) bool { return hasCode(err, ErrCodeNotInitialized) }

// CodeOf returns the code of err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

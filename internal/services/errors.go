package services

import "errors"

var (
	// ErrValidation rejects a request before any side effect is attempted.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when no caller identity is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for records the caller cannot see.
	ErrNotFound = errors.New("not found")
	// ErrPersistence fails the whole operation when the durable store is unavailable.
	ErrPersistence = errors.New("persistence failure")
)

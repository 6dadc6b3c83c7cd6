// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a local record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when a sync run is already in progress.
	ErrConcurrencyConflict = errors.New("sync run already in progress")

	// ErrValidation marks user-correctable input errors. Match with errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes invalid or unresolvable input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

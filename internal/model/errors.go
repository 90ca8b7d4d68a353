package model

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// Reasons reported by event creation.
const (
	ReasonDateInPast          = "date in the past"
	ReasonNonPositiveCapacity = "non-positive capacity"
	ReasonNegativePrice       = "negative price"
)

// ValidationError reports invalid creation input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an operation on an event id that does not exist.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("event %d not found", e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

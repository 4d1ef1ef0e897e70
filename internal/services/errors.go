package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("amount is below the minimum withdrawal")
	ErrInvalidState        = errors.New("unable to process request, please refresh")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEvent      = errors.New("event already processed")
	ErrInvalidSignature    = errors.New("invalid webhook signature")

	// ErrNotReferred matches ErrNotFound too.
	ErrNotReferred = fmt.Errorf("%w: buyer was not referred", ErrNotFound)
)

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingID            = errors.New("id is required")
	ErrMissingSource        = errors.New("source is required")
	ErrMissingTarget        = errors.New("target is required")
	ErrMissingAmount        = errors.New("amount is required")
	ErrMissingKey           = errors.New("start key is required")
	ErrMissingTerminalLabel = errors.New("terminal label is required")
	ErrInvalidThreshold     = errors.New("min contribution must be a finite, non-negative number")
	ErrInvalidEmitMode      = errors.New("emit must be 'all' or 'terminal'")
)

// ErrMalformedWeight indicates an edge amount that is negative, NaN or infinite.
var ErrMalformedWeight = errors.New("malformed edge amount")

// Sentinel errors for entity lookups.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrUnknownNode  = errors.New("edge references unknown node")
)

// ErrDuplicateKey indicates a repeated identifier inside one graph document.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}

// ErrOutOfRange returns an error indicating a numeric field is outside [lo, hi].
func ErrOutOfRange(field string, lo, hi int) error {
	return fmt.Errorf("%s must be between %d and %d", field, lo, hi)
}

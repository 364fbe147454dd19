package predictor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers missing fields, wrong types and unseen
	// categorical labels. It maps to 400 at the HTTP boundary.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal is any failure the caller could not have avoided.
	ErrInternal = errors.New("internal error")
)

// WrapError tags err with a kind and the failing operation.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName is a short label for metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsKind(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

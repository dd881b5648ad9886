package core

import (
	"errors"
	"fmt"

	"calmpath.app/memorycare/internal/mood"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidStatus      = mood.ErrInvalidStatus
	ErrInvalidInput       = errors.New("invalid input")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// persistenceErr tags a repository error so callers can match it with
// errors.Is(err, ErrPersistenceFailure) while keeping the cause.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, op, err)
}

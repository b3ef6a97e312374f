package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k < 1.
	ErrInvalidK = errors.New("tree: k must be positive")
	// ErrInvalidRadius is returned for negative or NaN range radii.
	ErrInvalidRadius = errors.New("tree: radius must be non-negative")
	// ErrInvalidSettings is returned for settings that fail validation.
	ErrInvalidSettings = errors.New("tree: invalid settings")
	// ErrInvariant is returned by Validate when the structure is broken.
	ErrInvariant = errors.New("tree: invariant violated")
)

// ErrDimensionMismatch is returned for points or queries whose
// dimensionality differs from the tree's.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

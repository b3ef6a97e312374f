package xtree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/xtree/blobstore"
	"github.com/hupe1980/xtree/internal/compress"
	"github.com/hupe1980/xtree/internal/manifest"
	"github.com/hupe1980/xtree/internal/node"
	"github.com/hupe1980/xtree/internal/pagestore"
	"github.com/hupe1980/xtree/internal/tree"
	"github.com/hupe1980/xtree/relation"
)

var (
	// ErrNotFound is returned when an object id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when inserting an id that is indexed.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrInvalidRadius is returned for negative range radii.
	ErrInvalidRadius = errors.New("radius must be non-negative")
	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("index is closed")
	// ErrCorrupt is returned when persisted state cannot be decoded or
	// violates a structural invariant.
	ErrCorrupt = errors.New("corrupt index")
	// ErrLocked is returned when another process holds the blob store.
	ErrLocked = blobstore.ErrLocked
)

// ErrDimensionMismatch indicates a point/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidConfig indicates an invalid configuration, or one that does
// not match the index persisted in the blob store.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidConfig struct {
	Reason string
	cause  error
}

func (e *ErrInvalidConfig) Error() string {
	return "invalid config: " + e.Reason
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

func invalidConfig(err error, format string, args ...any) error {
	return &ErrInvalidConfig{Reason: fmt.Sprintf(format, args...), cause: err}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, relation.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Dimension and argument normalization.
	var dm *tree.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, tree.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, tree.ErrInvalidRadius) {
		return fmt.Errorf("%w: %w", ErrInvalidRadius, err)
	}
	if errors.Is(err, tree.ErrInvalidSettings) {
		return &ErrInvalidConfig{Reason: err.Error(), cause: err}
	}

	// Storage state.
	if errors.Is(err, pagestore.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, tree.ErrInvariant) ||
		errors.Is(err, manifest.ErrCorrupt) ||
		errors.Is(err, node.ErrInvalidPage) ||
		errors.Is(err, compress.ErrCorrupt) ||
		errors.Is(err, pagestore.ErrPageNotFound) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}

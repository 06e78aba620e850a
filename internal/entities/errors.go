package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed input, such as a zero id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when no row visible to the caller matches.
	ErrNotFound = errors.New("attribute not found")

	// ErrWriteFailed is returned when the store rejects an insert, update,
	// delete or transaction step.
	ErrWriteFailed = errors.New("write failed")

	// ErrAtBoundary is returned when a move has no sibling to swap with.
	ErrAtBoundary = fmt.Errorf("%w: no sibling at target rank", ErrInvalidArgument)

	// ErrDuplicateRef is returned when the ref is already used within the entity.
	ErrDuplicateRef = fmt.Errorf("%w: duplicate attribute ref", ErrWriteFailed)
)

package buffer

import "errors"

var (
	// ErrInvalidCapacity is returned when a buffer is constructed with a
	// non-positive max size or a negative initial size.
	ErrInvalidCapacity = errors.New("invalid capacity")

	// ErrInvalidParameter is returned for bad prioritization parameters.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotEnoughData is returned when a sample cannot be drawn from the
	// records currently held.
	ErrNotEnoughData = errors.New("not enough data")

	// ErrInvalidPriority is returned for NaN, infinite or negative priorities.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrIndexOutOfRange is returned for tree indices outside the leaf range.
	ErrIndexOutOfRange = errors.New("tree index out of range")

	// ErrLengthMismatch is returned when paired slices differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
)

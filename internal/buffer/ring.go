package buffer

import "fmt"

// Ring is a fixed-capacity circular store. Once full, each push overwrites
// the oldest slot.
type Ring[T any] struct {
	slots  []T
	cursor int
	full   bool
}

// NewRing returns an empty ring holding at most capacity values.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	return &Ring[T]{slots: make([]T, capacity)}, nil
}

// Push writes v at the cursor and returns the slot it was written to.
func (r *Ring[T]) Push(v T) int {
	slot := r.cursor
	r.slots[slot] = v
	r.cursor++
	if r.cursor == len(r.slots) {
		r.cursor = 0
		r.full = true
	}
	return slot
}

// At returns the value stored in slot i. i must be in [0, Cap()).
func (r *Ring[T]) At(i int) T {
	return r.slots[i]
}

// Size returns the number of slots holding a written value.
func (r *Ring[T]) Size() int {
	if r.full {
		return len(r.slots)
	}
	return r.cursor
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// Cursor returns the next slot to be overwritten.
func (r *Ring[T]) Cursor() int {
	return r.cursor
}

// Full reports whether the cursor has wrapped at least once.
func (r *Ring[T]) Full() bool {
	return r.full
}

// Reset empties the ring and zeroes every slot.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.slots {
		r.slots[i] = zero
	}
	r.cursor = 0
	r.full = false
}

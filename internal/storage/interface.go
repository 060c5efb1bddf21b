package storage

import (
	"context"
	"errors"

	"github.com/cartridge/replay/internal/buffer"
)

// Mode selects how a backend samples.
type Mode string

const (
	ModeUniform     Mode = "uniform"
	ModePrioritized Mode = "prioritized"
)

var (
	// ErrNotReady is returned when sampling before the buffer holds more
	// than its initial size.
	ErrNotReady = errors.New("replay buffer not initialized")
	// ErrNotPrioritized is returned by priority updates on a uniform backend.
	ErrNotPrioritized = errors.New("replay buffer is not prioritized")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("replay buffer closed")
	// ErrInvalidMode is returned for an unknown Mode.
	ErrInvalidMode = errors.New("invalid replay mode")
)

// Sample is a batch read from a backend. Indices, Generations are only set
// in prioritized mode; Weights are all 1 in uniform mode.
type Sample struct {
	BatchID     string
	Transitions []buffer.Transition
	Indices     []int
	Generations []uint64
	Weights     []float64
}

// Stats represents replay buffer statistics
type Stats struct {
	Mode          Mode    `json:"mode"`
	Size          int     `json:"size"`
	Capacity      int     `json:"capacity"`
	InitialSize   int     `json:"initial_size"`
	Initialized   bool    `json:"initialized"`
	TotalPriority float64 `json:"total_priority,omitempty"`
	MaxPriority   float64 `json:"max_priority,omitempty"`
	Beta          float64 `json:"beta,omitempty"`
	TotalAdded    uint64  `json:"total_added"`
	TotalSampled  uint64  `json:"total_sampled"`
}

// Backend defines the interface for replay buffer storage implementations
type Backend interface {
	// Store multiple transitions in a batch, returning how many were stored
	StoreBatch(ctx context.Context, transitions []buffer.Transition) (int, error)

	// Sample a batch of n transitions
	Sample(ctx context.Context, n int) (*Sample, error)

	// Update priorities for prioritized replay from training errors.
	// generations may be nil, in which case no staleness check is made.
	UpdatePriorities(ctx context.Context, indices []int, generations []uint64, errs []float64) (int, error)

	// Get buffer statistics
	GetStats(ctx context.Context) (*Stats, error)

	// Reset empties the buffer
	Reset(ctx context.Context) error

	// Close the backend and cleanup resources
	Close() error
}

package buffer

import "fmt"

// UniformConfig configures a Uniform buffer.
type UniformConfig struct {
	// InitialSize is the readiness threshold; see Uniform.Initialized.
	InitialSize int
	// MaxSize is the buffer capacity.
	MaxSize int
	// Source defaults to a time-seeded math/rand source.
	Source Source
}

// Uniform is a replay buffer sampling stored transitions uniformly.
type Uniform struct {
	initialSize int
	ring        *Ring[Transition]
	rng         Source
}

// NewUniform creates an empty uniform replay buffer.
func NewUniform(cfg UniformConfig) (*Uniform, error) {
	if cfg.InitialSize < 0 {
		return nil, fmt.Errorf("initial size %d: %w", cfg.InitialSize, ErrInvalidCapacity)
	}
	ring, err := NewRing[Transition](cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	return &Uniform{
		initialSize: cfg.InitialSize,
		ring:        ring,
		rng:         defaultSource(cfg.Source),
	}, nil
}

// Add copies transitions into the buffer, overwriting the oldest records
// once the buffer is full.
func (u *Uniform) Add(transitions ...Transition) {
	for _, t := range transitions {
		u.ring.Push(t.clone())
	}
}

// Sample draws n distinct transitions uniformly at random. Successive calls
// are independent.
func (u *Uniform) Sample(n int) (Batch, error) {
	size := u.ring.Size()
	if err := checkSampleSize(n, size); err != nil {
		return Batch{}, err
	}

	// Partial Fisher-Yates over the written slots.
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	batch := newBatch(n)
	for i := 0; i < n; i++ {
		j := i + u.rng.Intn(size-i)
		indices[i], indices[j] = indices[j], indices[i]
		batch.set(i, u.ring.At(indices[i]))
	}
	return batch, nil
}

// Reset empties the buffer.
func (u *Uniform) Reset() {
	u.ring.Reset()
}

// Initialized reports whether more than InitialSize transitions are stored.
func (u *Uniform) Initialized() bool {
	return u.Size() > u.initialSize
}

// Size returns the number of stored transitions.
func (u *Uniform) Size() int {
	return u.ring.Size()
}

// Capacity returns the maximum number of stored transitions.
func (u *Uniform) Capacity() int {
	return u.ring.Cap()
}

func checkSampleSize(n, size int) error {
	switch {
	case size == 0:
		return fmt.Errorf("sample from empty buffer: %w", ErrNotEnoughData)
	case n <= 0:
		return fmt.Errorf("sample size %d must be positive: %w", n, ErrInvalidParameter)
	case n > size:
		return fmt.Errorf("sample size %d exceeds buffer size %d: %w", n, size, ErrNotEnoughData)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/replay/internal/buffer"
	"github.com/cartridge/replay/internal/events"
	"github.com/cartridge/replay/internal/schedule"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.BufferEvent
	err    error
}

func (r *recordingPublisher) PublishBufferEvent(_ context.Context, e events.BufferEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func newTestBackend(t *testing.T, opts Options) *MemoryBackend {
	t.Helper()
	opts.Logger = zerolog.New(io.Discard)
	if opts.Source == nil {
		opts.Source = rand.New(rand.NewSource(42))
	}
	backend, err := NewMemoryBackend(opts)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func transitions(n int) []buffer.Transition {
	out := make([]buffer.Transition, n)
	for i := range out {
		out[i] = buffer.Transition{
			State:     []float32{float32(i), 0},
			Action:    []float32{1},
			Reward:    float64(i),
			NextState: []float32{float32(i), 1},
			Absorbing: i%4 == 3,
			Last:      i%4 == 3,
		}
	}
	return out
}

func TestNewMemoryBackend_Invalid(t *testing.T) {
	_, err := NewMemoryBackend(Options{Mode: "fifo", MaxSize: 10})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = NewMemoryBackend(Options{Mode: ModeUniform, MaxSize: 0})
	assert.ErrorIs(t, err, buffer.ErrInvalidCapacity)

	_, err = NewMemoryBackend(Options{Mode: ModePrioritized, MaxSize: 10, Alpha: -1})
	assert.ErrorIs(t, err, buffer.ErrInvalidParameter)
}

func TestMemoryBackend_Uniform(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModeUniform, InitialSize: 4, MaxSize: 100})
	ctx := context.Background()

	stored, err := backend.StoreBatch(ctx, transitions(4))
	require.NoError(t, err)
	assert.Equal(t, 4, stored)

	_, err = backend.Sample(ctx, 2)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = backend.StoreBatch(ctx, transitions(4))
	require.NoError(t, err)

	sample, err := backend.Sample(ctx, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, sample.BatchID)
	assert.Len(t, sample.Transitions, 3)
	assert.Equal(t, []float64{1, 1, 1}, sample.Weights)
	assert.Nil(t, sample.Indices)

	_, err = backend.UpdatePriorities(ctx, []int{0}, nil, []float64{1})
	assert.ErrorIs(t, err, ErrNotPrioritized)

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeUniform, stats.Mode)
	assert.Equal(t, 8, stats.Size)
	assert.Equal(t, 100, stats.Capacity)
	assert.True(t, stats.Initialized)
	assert.Equal(t, uint64(8), stats.TotalAdded)
	assert.Equal(t, uint64(3), stats.TotalSampled)
}

func TestMemoryBackend_SampleTooLarge(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModeUniform, MaxSize: 10})
	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, transitions(3))
	require.NoError(t, err)

	_, err = backend.Sample(ctx, 4)
	assert.ErrorIs(t, err, buffer.ErrNotEnoughData)
}

func TestMemoryBackend_PrioritizedStoresAtMaxPriority(t *testing.T) {
	backend := newTestBackend(t, Options{
		Mode:        ModePrioritized,
		InitialSize: 1,
		MaxSize:     8,
		Alpha:       1,
		Epsilon:     0,
	})
	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, transitions(2))
	require.NoError(t, err)

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, stats.TotalPriority)

	// Leaf 7 is slot 0 in a tree of capacity 8.
	applied, err := backend.UpdatePriorities(ctx, []int{7}, nil, []float64{-5})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	_, err = backend.StoreBatch(ctx, transitions(1))
	require.NoError(t, err)

	stats, err = backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11.0, stats.TotalPriority)
	assert.Equal(t, 5.0, stats.MaxPriority)
}

func TestMemoryBackend_PrioritizedSample(t *testing.T) {
	beta, err := schedule.NewLinear(0.4, 1.0, 2)
	require.NoError(t, err)
	backend := newTestBackend(t, Options{
		Mode:    ModePrioritized,
		MaxSize: 16,
		Alpha:   0.6,
		Epsilon: buffer.DefaultEpsilon,
		Beta:    beta,
	})
	ctx := context.Background()

	_, err = backend.StoreBatch(ctx, transitions(10))
	require.NoError(t, err)

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, stats.Beta, 1e-12)

	sample, err := backend.Sample(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, sample.Transitions, 4)
	assert.Len(t, sample.Indices, 4)
	assert.Len(t, sample.Generations, 4)
	assert.Len(t, sample.Weights, 4)

	stats, err = backend.GetStats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, stats.Beta, 1e-12)

	applied, err := backend.UpdatePriorities(ctx, sample.Indices, sample.Generations, []float64{0.5, 0.1, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, 4, applied)
}

func TestMemoryBackend_ResetRewindsBeta(t *testing.T) {
	beta, err := schedule.NewLinear(0.4, 1.0, 4)
	require.NoError(t, err)
	backend := newTestBackend(t, Options{
		Mode:    ModePrioritized,
		MaxSize: 8,
		Alpha:   0.6,
		Epsilon: buffer.DefaultEpsilon,
		Beta:    beta,
	})
	ctx := context.Background()

	_, err = backend.StoreBatch(ctx, transitions(4))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = backend.Sample(ctx, 2)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), beta.Ticks())

	require.NoError(t, backend.Reset(ctx))
	assert.Equal(t, uint64(0), beta.Ticks())

	_, err = backend.StoreBatch(ctx, transitions(2))
	require.NoError(t, err)
	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, stats.Beta, 1e-12)
}

func TestMemoryBackend_StaleUpdatesSkipped(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModePrioritized, MaxSize: 2, Alpha: 1})
	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, transitions(2))
	require.NoError(t, err)
	sample, err := backend.Sample(ctx, 2)
	require.NoError(t, err)

	_, err = backend.StoreBatch(ctx, transitions(2))
	require.NoError(t, err)

	applied, err := backend.UpdatePriorities(ctx, sample.Indices, sample.Generations, []float64{9, 9})
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, stats.TotalPriority)
}

func TestMemoryBackend_UpdateRejectsInvalid(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModePrioritized, MaxSize: 4, Alpha: 1})
	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, transitions(2))
	require.NoError(t, err)

	_, err = backend.UpdatePriorities(ctx, []int{99}, nil, []float64{1})
	assert.ErrorIs(t, err, buffer.ErrIndexOutOfRange)

	_, err = backend.UpdatePriorities(ctx, []int{3, 4}, nil, []float64{1})
	assert.ErrorIs(t, err, buffer.ErrLengthMismatch)
}

func TestMemoryBackend_Events(t *testing.T) {
	publisher := &recordingPublisher{}
	backend := newTestBackend(t, Options{
		Mode:        ModeUniform,
		InitialSize: 2,
		MaxSize:     10,
		Publisher:   publisher,
	})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := backend.StoreBatch(ctx, transitions(1))
		require.NoError(t, err)
	}
	assert.Equal(t, []events.Kind{events.KindReady}, publisher.kinds())

	require.NoError(t, backend.Reset(ctx))
	_, err := backend.StoreBatch(ctx, transitions(3))
	require.NoError(t, err)

	assert.Equal(t, []events.Kind{events.KindReady, events.KindReset, events.KindReady}, publisher.kinds())
	assert.Equal(t, 3, publisher.events[0].Size)
	assert.Equal(t, 10, publisher.events[0].Capacity)
	assert.Equal(t, 0, publisher.events[1].Size)
}

func TestMemoryBackend_PublishFailureDoesNotFailStore(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("nats down")}
	backend := newTestBackend(t, Options{Mode: ModeUniform, MaxSize: 10, Publisher: publisher})

	stored, err := backend.StoreBatch(context.Background(), transitions(2))
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
}

func TestMemoryBackend_Reset(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModePrioritized, InitialSize: 1, MaxSize: 4, Alpha: 1})
	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, transitions(6))
	require.NoError(t, err)
	require.NoError(t, backend.Reset(ctx))

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)
	assert.False(t, stats.Initialized)
	assert.Equal(t, 0.0, stats.TotalPriority)
	assert.Equal(t, 1.0, stats.MaxPriority)

	_, err = backend.Sample(ctx, 1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModePrioritized, MaxSize: 4, Alpha: 1})
	ctx := context.Background()
	require.NoError(t, backend.Close())

	_, err := backend.StoreBatch(ctx, transitions(1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.Sample(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.UpdatePriorities(ctx, nil, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.GetStats(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Reset(ctx), ErrClosed)
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	backend := newTestBackend(t, Options{Mode: ModePrioritized, MaxSize: 64, Alpha: 0.6, Epsilon: 0.01})
	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, transitions(16))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := backend.StoreBatch(ctx, transitions(3))
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sample, err := backend.Sample(ctx, 8)
				if !assert.NoError(t, err) {
					return
				}
				errs := make([]float64, len(sample.Indices))
				for j := range errs {
					errs[j] = float64(j)
				}
				_, err = backend.UpdatePriorities(ctx, sample.Indices, sample.Generations, errs)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, stats.Size)
	assert.Equal(t, uint64(16+4*50*3), stats.TotalAdded)
}

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cartridge/replay/internal/buffer"
	"github.com/cartridge/replay/internal/events"
	"github.com/cartridge/replay/internal/metrics"
	"github.com/cartridge/replay/internal/schedule"
)

// Options configures a MemoryBackend.
type Options struct {
	Mode        Mode
	InitialSize int
	MaxSize     int

	// Prioritized mode only.
	Alpha   float64
	Epsilon float64
	Beta    schedule.Schedule

	Source    buffer.Source
	Publisher events.Publisher
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// MemoryBackend serializes access to an in-memory replay buffer
type MemoryBackend struct {
	mu          sync.Mutex
	mode        Mode
	initialSize int
	uniform     *buffer.Uniform
	prioritized *buffer.Prioritized
	beta        schedule.Schedule

	ready        bool
	closed       bool
	totalAdded   uint64
	totalSampled uint64

	publisher events.Publisher
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// NewMemoryBackend creates a new in-memory storage backend
func NewMemoryBackend(opts Options) (*MemoryBackend, error) {
	m := &MemoryBackend{
		mode:        opts.Mode,
		initialSize: opts.InitialSize,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With().Str("component", "replay_buffer").Str("mode", string(opts.Mode)).Logger(),
	}
	if m.publisher == nil {
		m.publisher = events.NoopPublisher{}
	}
	if m.metrics == nil {
		m.metrics = metrics.NewCollector(prometheus.NewRegistry(), opts.Logger)
	}

	switch opts.Mode {
	case ModeUniform:
		u, err := buffer.NewUniform(buffer.UniformConfig{
			InitialSize: opts.InitialSize,
			MaxSize:     opts.MaxSize,
			Source:      opts.Source,
		})
		if err != nil {
			return nil, fmt.Errorf("create uniform buffer: %w", err)
		}
		m.uniform = u
	case ModePrioritized:
		m.beta = opts.Beta
		if m.beta == nil {
			m.beta = schedule.Constant(1)
		}
		p, err := buffer.NewPrioritized(buffer.PrioritizedConfig{
			InitialSize: opts.InitialSize,
			MaxSize:     opts.MaxSize,
			Alpha:       opts.Alpha,
			Beta:        m.beta.Value,
			Epsilon:     opts.Epsilon,
			Source:      opts.Source,
		})
		if err != nil {
			return nil, fmt.Errorf("create prioritized buffer: %w", err)
		}
		m.prioritized = p
	default:
		return nil, fmt.Errorf("%q: %w", opts.Mode, ErrInvalidMode)
	}

	return m, nil
}

// StoreBatch implements Backend.StoreBatch. In prioritized mode every new
// transition enters at the current maximum priority.
func (m *MemoryBackend) StoreBatch(ctx context.Context, transitions []buffer.Transition) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}

	if m.prioritized != nil {
		priorities := make([]float64, len(transitions))
		maxP := m.prioritized.MaxPriority()
		for i := range priorities {
			priorities[i] = maxP
		}
		if err := m.prioritized.Add(transitions, priorities); err != nil {
			m.mu.Unlock()
			return 0, err
		}
		m.metrics.TotalPriority(m.prioritized.TotalPriority())
	} else {
		m.uniform.Add(transitions...)
	}
	m.totalAdded += uint64(len(transitions))
	m.metrics.TransitionsAdded(string(m.mode), len(transitions), m.size())

	var event *events.BufferEvent
	if !m.ready && m.initialized() {
		m.ready = true
		e := m.event(events.KindReady)
		event = &e
	}
	m.mu.Unlock()

	if event != nil {
		m.logger.Info().Int("size", event.Size).Msg("Replay buffer initialized")
		m.publish(ctx, *event)
	}
	return len(transitions), nil
}

// Sample implements Backend.Sample
func (m *MemoryBackend) Sample(ctx context.Context, n int) (*Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if !m.initialized() {
		err := fmt.Errorf("%d of more than %d transitions stored: %w", m.size(), m.initialSize, ErrNotReady)
		m.metrics.SampleFailed(string(m.mode), err)
		return nil, err
	}

	start := time.Now()
	sample := &Sample{BatchID: uuid.New().String()}
	if m.prioritized != nil {
		batch, err := m.prioritized.Sample(n)
		if err != nil {
			m.metrics.SampleFailed(string(m.mode), err)
			return nil, err
		}
		m.beta.Step()
		sample.Transitions = batch.Transitions()
		sample.Indices = batch.Indices
		sample.Generations = batch.Generations
		sample.Weights = batch.Weights
	} else {
		batch, err := m.uniform.Sample(n)
		if err != nil {
			m.metrics.SampleFailed(string(m.mode), err)
			return nil, err
		}
		sample.Transitions = batch.Transitions()
		sample.Weights = make([]float64, n)
		for i := range sample.Weights {
			sample.Weights[i] = 1.0
		}
	}
	m.totalSampled += uint64(n)
	m.metrics.Sampled(string(m.mode), n, time.Since(start))

	return sample, nil
}

// UpdatePriorities implements Backend.UpdatePriorities
func (m *MemoryBackend) UpdatePriorities(ctx context.Context, indices []int, generations []uint64, errs []float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if m.prioritized == nil {
		return 0, ErrNotPrioritized
	}

	applied := len(indices)
	if generations == nil {
		if err := m.prioritized.Update(errs, indices); err != nil {
			return 0, err
		}
	} else {
		var err error
		applied, err = m.prioritized.UpdateCurrent(errs, indices, generations)
		if err != nil {
			return 0, err
		}
	}

	stale := len(indices) - applied
	if stale > 0 {
		m.logger.Debug().Int("stale", stale).Msg("Skipped priority updates for overwritten slots")
	}
	m.metrics.PrioritiesUpdated(applied, stale)
	m.metrics.TotalPriority(m.prioritized.TotalPriority())

	return applied, nil
}

// GetStats implements Backend.GetStats
func (m *MemoryBackend) GetStats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	stats := &Stats{
		Mode:         m.mode,
		Size:         m.size(),
		InitialSize:  m.initialSize,
		Initialized:  m.initialized(),
		TotalAdded:   m.totalAdded,
		TotalSampled: m.totalSampled,
	}
	if m.prioritized != nil {
		stats.Capacity = m.prioritized.Capacity()
		stats.TotalPriority = m.prioritized.TotalPriority()
		stats.MaxPriority = m.prioritized.MaxPriority()
		stats.Beta = m.prioritized.Beta()
	} else {
		stats.Capacity = m.uniform.Capacity()
	}

	return stats, nil
}

// rewinder is a beta schedule that can be returned to its start.
type rewinder interface {
	Reset()
}

// Reset implements Backend.Reset. A beta schedule with a Reset method is
// rewound along with the buffer.
func (m *MemoryBackend) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.prioritized != nil {
		m.prioritized.Reset()
		if r, ok := m.beta.(rewinder); ok {
			r.Reset()
		}
		m.metrics.TotalPriority(0)
	} else {
		m.uniform.Reset()
	}
	m.ready = false
	m.metrics.BufferSize(0)
	event := m.event(events.KindReset)
	m.mu.Unlock()

	m.logger.Info().Msg("Replay buffer reset")
	m.publish(ctx, event)
	return nil
}

// Close implements Backend.Close
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.uniform = nil
	m.prioritized = nil

	return nil
}

// Helper methods

func (m *MemoryBackend) size() int {
	if m.prioritized != nil {
		return m.prioritized.Size()
	}
	return m.uniform.Size()
}

func (m *MemoryBackend) initialized() bool {
	if m.prioritized != nil {
		return m.prioritized.Initialized()
	}
	return m.uniform.Initialized()
}

func (m *MemoryBackend) event(kind events.Kind) events.BufferEvent {
	e := events.BufferEvent{
		Kind:        kind,
		Mode:        string(m.mode),
		Size:        m.size(),
		InitialSize: m.initialSize,
	}
	if m.prioritized != nil {
		e.Capacity = m.prioritized.Capacity()
		e.TotalPriority = m.prioritized.TotalPriority()
	} else {
		e.Capacity = m.uniform.Capacity()
	}
	return e
}

func (m *MemoryBackend) publish(ctx context.Context, event events.BufferEvent) {
	if err := m.publisher.PublishBufferEvent(ctx, event); err != nil {
		m.logger.Warn().Err(err).Str("kind", string(event.Kind)).Msg("Failed to publish buffer event")
	}
}

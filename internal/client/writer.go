package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	replayv1 "github.com/cartridge/replay/pkg/replay/v1"
)

// WriterConfig controls when buffered transitions are sent.
type WriterConfig struct {
	// BatchSize transitions trigger an immediate flush.
	BatchSize int
	// FlushInterval bounds how long a partial batch waits in Run.
	FlushInterval time.Duration
}

// Writer accumulates transitions and stores them in batches. It is safe for
// concurrent use; Run may flush while producers call Add.
type Writer struct {
	client replayv1.ReplayClient
	cfg    WriterConfig
	logger zerolog.Logger

	mu      sync.Mutex
	pending []*replayv1.Transition
	stored  uint64
}

// NewWriter creates a Writer over an existing client.
func NewWriter(client replayv1.ReplayClient, cfg WriterConfig, logger zerolog.Logger) (*Writer, error) {
	if cfg.BatchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, errors.New("flush interval must be positive")
	}
	return &Writer{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		pending: make([]*replayv1.Transition, 0, cfg.BatchSize),
	}, nil
}

// Add buffers transitions and stores every full batch. All transitions are
// accepted even when a store fails; the error reports that they are still
// pending and a later Add, Flush or Run tick retries them.
func (w *Writer) Add(ctx context.Context, transitions ...*replayv1.Transition) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, transitions...)
	return w.flushLocked(ctx, false)
}

// Flush sends any buffered transitions.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx, true)
}

// Pending returns the number of buffered transitions.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stored returns the number of transitions the service acknowledged.
func (w *Writer) Stored() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stored
}

// Run flushes partial batches every FlushInterval until ctx is done, then
// makes a final flush.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), w.cfg.FlushInterval)
			if err := w.Flush(flushCtx); err != nil {
				w.logger.Error().Err(err).Msg("Failed to flush buffer on close")
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to flush buffer")
			}
		}
	}
}

// flushLocked stores pending transitions in chunks of at most BatchSize,
// stopping at the first failure. With partial false a trailing short chunk
// stays pending.
func (w *Writer) flushLocked(ctx context.Context, partial bool) error {
	for len(w.pending) >= w.cfg.BatchSize || (partial && len(w.pending) > 0) {
		n := min(len(w.pending), w.cfg.BatchSize)

		w.logger.Debug().Int("count", n).Msg("Flushing transitions to replay service")

		resp, err := w.client.StoreBatch(ctx, &replayv1.StoreBatchRequest{Transitions: w.pending[:n]})
		if err != nil {
			return fmt.Errorf("failed to store batch (%d pending): %w", len(w.pending), err)
		}

		w.stored += uint64(resp.StoredCount)
		rest := make([]*replayv1.Transition, len(w.pending)-n, max(len(w.pending)-n, w.cfg.BatchSize))
		copy(rest, w.pending[n:])
		w.pending = rest
	}
	return nil
}

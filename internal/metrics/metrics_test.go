package metrics

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(reg, zerolog.New(io.Discard)), reg
}

func TestCollector_TransitionsAdded(t *testing.T) {
	c, _ := newTestCollector(t)

	c.TransitionsAdded("prioritized", 3, 3)
	c.TransitionsAdded("prioritized", 2, 5)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.transitionsAdded.WithLabelValues("prioritized")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.bufferSize))
}

func TestCollector_Samples(t *testing.T) {
	c, _ := newTestCollector(t)

	c.Sampled("uniform", 32, time.Millisecond)
	c.Sampled("uniform", 32, time.Millisecond)
	c.SampleFailed("uniform", errors.New("not enough data"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.samples.WithLabelValues("uniform", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.samples.WithLabelValues("uniform", "error")))
	assert.Equal(t, 64.0, testutil.ToFloat64(c.sampledTransitions.WithLabelValues("uniform")))
}

func TestCollector_PrioritiesUpdated(t *testing.T) {
	c, _ := newTestCollector(t)

	c.PrioritiesUpdated(6, 2)
	c.TotalPriority(12.5)

	assert.Equal(t, 6.0, testutil.ToFloat64(c.priorityUpdates))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.staleUpdates))
	assert.Equal(t, 12.5, testutil.ToFloat64(c.totalPriority))
}

func TestCollector_Registered(t *testing.T) {
	c, reg := newTestCollector(t)
	c.BufferSize(4)

	count, err := testutil.GatherAndCount(reg, "replay_buffer_size")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

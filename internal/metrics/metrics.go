package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const namespace = "replay"

// Collector records replay buffer metrics to Prometheus and mirrors them to
// debug logs.
type Collector struct {
	logger zerolog.Logger

	transitionsAdded   *prometheus.CounterVec
	samples            *prometheus.CounterVec
	sampledTransitions *prometheus.CounterVec
	priorityUpdates    prometheus.Counter
	staleUpdates       prometheus.Counter
	bufferSize         prometheus.Gauge
	totalPriority      prometheus.Gauge
	sampleDuration     *prometheus.HistogramVec
}

// NewCollector creates a collector and registers it with reg.
func NewCollector(reg prometheus.Registerer, logger zerolog.Logger) *Collector {
	c := &Collector{
		logger: logger,
		transitionsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_added_total",
			Help:      "Transitions written to the buffer",
		}, []string{"mode"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Sample calls by outcome",
		}, []string{"mode", "status"}),
		sampledTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampled_transitions_total",
			Help:      "Transitions returned by sample calls",
		}, []string{"mode"}),
		priorityUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "priority_updates_total",
			Help:      "Leaf priorities updated from training error",
		}),
		staleUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_updates_total",
			Help:      "Priority updates skipped because the slot was overwritten",
		}),
		bufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_size",
			Help:      "Transitions currently stored",
		}),
		totalPriority: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_total_priority",
			Help:      "Sum of all leaf priorities",
		}),
		sampleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_duration_seconds",
			Help:      "Time spent drawing a batch",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"mode"}),
	}

	reg.MustRegister(
		c.transitionsAdded,
		c.samples,
		c.sampledTransitions,
		c.priorityUpdates,
		c.staleUpdates,
		c.bufferSize,
		c.totalPriority,
		c.sampleDuration,
	)
	return c
}

// TransitionsAdded tracks a store call and the resulting buffer size.
func (c *Collector) TransitionsAdded(mode string, n, size int) {
	c.transitionsAdded.WithLabelValues(mode).Add(float64(n))
	c.bufferSize.Set(float64(size))
	c.logger.Debug().
		Str("metric", "transitions_added").
		Str("mode", mode).
		Int("count", n).
		Int("size", size).
		Msg("Transitions added")
}

// Sampled tracks a successful sample call.
func (c *Collector) Sampled(mode string, n int, duration time.Duration) {
	c.samples.WithLabelValues(mode, "ok").Inc()
	c.sampledTransitions.WithLabelValues(mode).Add(float64(n))
	c.sampleDuration.WithLabelValues(mode).Observe(duration.Seconds())
	c.logger.Debug().
		Str("metric", "sampled").
		Str("mode", mode).
		Int("count", n).
		Dur("duration", duration).
		Msg("Batch sampled")
}

// SampleFailed tracks a rejected sample call.
func (c *Collector) SampleFailed(mode string, err error) {
	c.samples.WithLabelValues(mode, "error").Inc()
	c.logger.Debug().
		Str("metric", "sample_failed").
		Str("mode", mode).
		Err(err).
		Msg("Sample rejected")
}

// PrioritiesUpdated tracks applied and skipped priority updates.
func (c *Collector) PrioritiesUpdated(applied, stale int) {
	c.priorityUpdates.Add(float64(applied))
	c.staleUpdates.Add(float64(stale))
	c.logger.Debug().
		Str("metric", "priorities_updated").
		Int("applied", applied).
		Int("stale", stale).
		Msg("Priorities updated")
}

// TotalPriority records the current root of the sum tree.
func (c *Collector) TotalPriority(total float64) {
	c.totalPriority.Set(total)
}

// BufferSize records the current number of stored transitions.
func (c *Collector) BufferSize(size int) {
	c.bufferSize.Set(float64(size))
}

package buffer

import (
	"fmt"
	"math"
)

// DefaultEpsilon is the additive priority floor used when none is configured.
const DefaultEpsilon = 0.01

// BetaFunc returns the current importance-sampling exponent. It is called
// once per Sample so that an external schedule can anneal it.
type BetaFunc func() float64

// ConstantBeta returns a BetaFunc that always yields b.
func ConstantBeta(b float64) BetaFunc {
	return func() float64 { return b }
}

// PrioritizedConfig configures a Prioritized buffer.
type PrioritizedConfig struct {
	InitialSize int
	MaxSize     int
	// Alpha sharpens (>1) or flattens (<1) the priority distribution.
	Alpha float64
	Beta  BetaFunc
	// Epsilon keeps every record's priority above zero.
	Epsilon float64
	Source  Source
}

// PrioritizedBatch is a sample drawn proportionally to priority.
type PrioritizedBatch struct {
	Batch
	// Indices are the tree leaf indices, to be passed back to Update.
	Indices []int
	// Generations are the slot generations at draw time, for UpdateCurrent.
	Generations []uint64
	// Weights are importance-sampling weights normalized to a maximum of 1.
	Weights []float64
}

// Prioritized is a replay buffer that samples records proportionally to
// their priority.
type Prioritized struct {
	initialSize int
	alpha       float64
	beta        BetaFunc
	epsilon     float64
	tree        *SumTree
	rng         Source
}

// NewPrioritized creates an empty prioritized replay buffer.
func NewPrioritized(cfg PrioritizedConfig) (*Prioritized, error) {
	if cfg.InitialSize < 0 {
		return nil, fmt.Errorf("initial size %d: %w", cfg.InitialSize, ErrInvalidCapacity)
	}
	if !finiteNonNegative(cfg.Alpha) {
		return nil, fmt.Errorf("alpha %v: %w", cfg.Alpha, ErrInvalidParameter)
	}
	if !finiteNonNegative(cfg.Epsilon) {
		return nil, fmt.Errorf("epsilon %v: %w", cfg.Epsilon, ErrInvalidParameter)
	}
	if cfg.Beta == nil {
		return nil, fmt.Errorf("beta is required: %w", ErrInvalidParameter)
	}
	rng := defaultSource(cfg.Source)
	tree, err := NewSumTree(cfg.MaxSize, rng)
	if err != nil {
		return nil, err
	}
	return &Prioritized{
		initialSize: cfg.InitialSize,
		alpha:       cfg.Alpha,
		beta:        cfg.Beta,
		epsilon:     cfg.Epsilon,
		tree:        tree,
		rng:         rng,
	}, nil
}

// Add stores transitions with raw priorities, usually MaxPriority() for
// each new record.
func (p *Prioritized) Add(transitions []Transition, priorities []float64) error {
	return p.tree.Add(transitions, priorities)
}

// Sample draws n records by stratified proportional sampling: the total
// priority mass is split into n equal segments and one record is drawn from
// each. The same record may appear more than once.
func (p *Prioritized) Sample(n int) (PrioritizedBatch, error) {
	size := p.tree.Size()
	if err := checkSampleSize(n, size); err != nil {
		return PrioritizedBatch{}, err
	}
	total := p.tree.TotalPriority()
	if total <= 0 {
		return PrioritizedBatch{}, fmt.Errorf("total priority is zero: %w", ErrNotEnoughData)
	}

	out := PrioritizedBatch{
		Batch:       newBatch(n),
		Indices:     make([]int, n),
		Generations: make([]uint64, n),
		Weights:     make([]float64, n),
	}
	beta := p.beta()
	segment := total / float64(n)
	// Weights are kept as logs until normalized: size and total cancel out,
	// and exp(lw - maxLog) stays finite for any positive priority.
	maxLog := math.Inf(-1)
	for i := 0; i < n; i++ {
		s := segment*float64(i) + p.rng.Float64()*segment
		if s >= total {
			s = math.Nextafter(total, 0)
		}
		idx, priority, tr := p.tree.Get(s)
		gen, _ := p.tree.Generation(idx)

		out.set(i, tr)
		out.Indices[i] = idx
		out.Generations[i] = gen
		lw := -beta * math.Log(priority)
		out.Weights[i] = lw
		if lw > maxLog {
			maxLog = lw
		}
	}
	for i, lw := range out.Weights {
		out.Weights[i] = math.Exp(lw - maxLog)
	}
	return out, nil
}

// Update recomputes priorities from training errors as
// (|error| + epsilon)^alpha for the given leaf indices.
func (p *Prioritized) Update(errs []float64, indices []int) error {
	if len(errs) != len(indices) {
		return fmt.Errorf("%d errors, %d indices: %w", len(errs), len(indices), ErrLengthMismatch)
	}
	return p.tree.Update(indices, p.priorities(errs))
}

// UpdateCurrent is Update restricted to leaves whose slot has not been
// overwritten since the sample that produced generations. Stale entries are
// skipped; the number of applied updates is returned.
func (p *Prioritized) UpdateCurrent(errs []float64, indices []int, generations []uint64) (int, error) {
	if len(errs) != len(indices) || len(indices) != len(generations) {
		return 0, fmt.Errorf("%d errors, %d indices, %d generations: %w",
			len(errs), len(indices), len(generations), ErrLengthMismatch)
	}
	priorities := p.priorities(errs)
	keepIdx := make([]int, 0, len(indices))
	keepP := make([]float64, 0, len(indices))
	for i, idx := range indices {
		gen, err := p.tree.Generation(idx)
		if err != nil {
			return 0, err
		}
		if gen != generations[i] {
			continue
		}
		keepIdx = append(keepIdx, idx)
		keepP = append(keepP, priorities[i])
	}
	if err := p.tree.Update(keepIdx, keepP); err != nil {
		return 0, err
	}
	return len(keepIdx), nil
}

func (p *Prioritized) priorities(errs []float64) []float64 {
	out := make([]float64, len(errs))
	for i, e := range errs {
		out[i] = math.Pow(math.Abs(e)+p.epsilon, p.alpha)
	}
	return out
}

// Reset empties the buffer.
func (p *Prioritized) Reset() {
	p.tree.Reset()
}

// Initialized reports whether more than InitialSize records are stored.
func (p *Prioritized) Initialized() bool {
	return p.tree.Size() > p.initialSize
}

// MaxPriority is the priority to assign new records: the largest stored
// priority once initialized, 1 before that.
func (p *Prioritized) MaxPriority() float64 {
	if p.Initialized() {
		return p.tree.MaxPriority()
	}
	return 1.0
}

// TotalPriority returns the sum of all stored priorities.
func (p *Prioritized) TotalPriority() float64 {
	return p.tree.TotalPriority()
}

// Size returns the number of stored records.
func (p *Prioritized) Size() int {
	return p.tree.Size()
}

// Capacity returns the maximum number of stored records.
func (p *Prioritized) Capacity() int {
	return p.tree.Capacity()
}

// Beta returns the current importance-sampling exponent.
func (p *Prioritized) Beta() float64 {
	return p.beta()
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

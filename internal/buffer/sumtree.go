package buffer

import (
	"fmt"
	"math"
)

// SumTree is a complete binary tree laid out over a flat array. Leaves hold
// per-record priorities and every internal node holds the sum of its two
// children, so the root is the total priority. Node i has children 2i+1 and
// 2i+2; leaf capacity-1+k belongs to record slot k.
//
// The tree owns the records it indexes and overwrites them in insertion
// order once full.
type SumTree struct {
	tree     []float64
	leafBase int
	data     *Ring[Transition]
	// generation counts writes per slot so that leaf indices handed out by
	// an earlier sample can be recognized as stale.
	generation []uint64
	rng        Source
}

// NewSumTree creates an empty tree for capacity records.
func NewSumTree(capacity int, src Source) (*SumTree, error) {
	data, err := NewRing[Transition](capacity)
	if err != nil {
		return nil, err
	}
	return &SumTree{
		tree:       make([]float64, 2*capacity-1),
		leafBase:   capacity - 1,
		data:       data,
		generation: make([]uint64, capacity),
		rng:        defaultSource(src),
	}, nil
}

// Add stores each transition at the write cursor with the matching priority.
// Nothing is stored if any priority is invalid.
func (t *SumTree) Add(transitions []Transition, priorities []float64) error {
	if len(transitions) != len(priorities) {
		return fmt.Errorf("%d transitions, %d priorities: %w", len(transitions), len(priorities), ErrLengthMismatch)
	}
	for _, p := range priorities {
		if err := checkPriority(p); err != nil {
			return err
		}
	}
	for i, tr := range transitions {
		slot := t.data.Push(tr.clone())
		t.generation[slot]++
		t.set(t.leafBase+slot, priorities[i])
	}
	return nil
}

// Update sets the priority of each leaf index. Every pair is validated
// before any is applied.
func (t *SumTree) Update(indices []int, priorities []float64) error {
	if len(indices) != len(priorities) {
		return fmt.Errorf("%d indices, %d priorities: %w", len(indices), len(priorities), ErrLengthMismatch)
	}
	for i, idx := range indices {
		if err := t.checkLeaf(idx); err != nil {
			return err
		}
		if err := checkPriority(priorities[i]); err != nil {
			return err
		}
	}
	for i, idx := range indices {
		t.set(idx, priorities[i])
	}
	return nil
}

// set writes a leaf and recomputes its ancestors up to the root.
func (t *SumTree) set(idx int, p float64) {
	t.tree[idx] = p
	for idx > 0 {
		idx = (idx - 1) / 2
		t.tree[idx] = t.tree[2*idx+1] + t.tree[2*idx+2]
	}
}

// Get descends from the root to the leaf whose cumulative range contains s,
// for s in [0, TotalPriority()). It returns the leaf index, its priority and
// a copy of its record. When both children carry exactly the same mass the
// direction is picked at random. Subtrees with zero mass are never entered,
// so a query that drifts past the end of the range still lands on a written
// record.
func (t *SumTree) Get(s float64) (int, float64, Transition) {
	idx := 0
	for {
		left := 2*idx + 1
		if left >= len(t.tree) {
			break
		}
		right := left + 1
		l, r := t.tree[left], t.tree[right]

		switch {
		case l == r:
			if s >= l {
				s -= l
			}
			if t.rng.Intn(2) == 0 {
				idx = left
			} else {
				idx = right
			}
		case r == 0 || (l > 0 && s < l):
			idx = left
		default:
			s -= l
			idx = right
		}
	}
	return idx, t.tree[idx], t.data.At(idx - t.leafBase).clone()
}

// Priority returns the priority stored at a leaf index.
func (t *SumTree) Priority(idx int) (float64, error) {
	if idx < t.leafBase || idx >= len(t.tree) {
		return 0, fmt.Errorf("index %d: %w", idx, ErrIndexOutOfRange)
	}
	return t.tree[idx], nil
}

// Generation returns the write generation of the slot behind a leaf index.
func (t *SumTree) Generation(idx int) (uint64, error) {
	if idx < t.leafBase || idx >= len(t.tree) {
		return 0, fmt.Errorf("index %d: %w", idx, ErrIndexOutOfRange)
	}
	return t.generation[idx-t.leafBase], nil
}

// Reset clears every priority and record. Generations keep counting so
// indices drawn before the reset stay stale afterwards.
func (t *SumTree) Reset() {
	for i := range t.tree {
		t.tree[i] = 0
	}
	for i := range t.generation {
		t.generation[i]++
	}
	t.data.Reset()
}

// Size returns the number of stored records.
func (t *SumTree) Size() int {
	return t.data.Size()
}

// Capacity returns the number of leaves.
func (t *SumTree) Capacity() int {
	return t.data.Cap()
}

// LeafBase returns the tree index of the first leaf.
func (t *SumTree) LeafBase() int {
	return t.leafBase
}

// MaxPriority returns the largest leaf priority. Unwritten leaves hold zero.
func (t *SumTree) MaxPriority() float64 {
	maxP := 0.0
	for _, p := range t.tree[t.leafBase:] {
		if p > maxP {
			maxP = p
		}
	}
	return maxP
}

// TotalPriority returns the sum of all leaf priorities.
func (t *SumTree) TotalPriority() float64 {
	return t.tree[0]
}

// checkLeaf rejects indices outside the leaf range and leaves whose slot
// has never been written.
func (t *SumTree) checkLeaf(idx int) error {
	if idx < t.leafBase || idx >= len(t.tree) {
		return fmt.Errorf("index %d outside [%d, %d): %w", idx, t.leafBase, len(t.tree), ErrIndexOutOfRange)
	}
	if slot := idx - t.leafBase; slot >= t.data.Size() {
		return fmt.Errorf("index %d refers to an empty slot: %w", idx, ErrIndexOutOfRange)
	}
	return nil
}

func checkPriority(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("priority %v: %w", p, ErrInvalidPriority)
	}
	return nil
}

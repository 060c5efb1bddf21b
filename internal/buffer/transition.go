// Package buffer implements fixed-capacity experience replay buffers: a
// uniform ring buffer and a prioritized buffer backed by a sum tree.
//
// Nothing in this package is safe for concurrent use. Callers that share a
// buffer must serialize Add, Sample and Update themselves.
package buffer

import (
	"math/rand"
	"time"
)

// Transition is a single experience record.
type Transition struct {
	State     []float32 `json:"state"`
	Action    []float32 `json:"action"`
	Reward    float64   `json:"reward"`
	NextState []float32 `json:"next_state"`
	// Absorbing reports whether NextState is terminal.
	Absorbing bool `json:"absorbing"`
	// Last reports whether this is the final step of an episode.
	Last bool `json:"last"`
}

// clone returns a deep copy so stored records never alias caller memory.
func (t Transition) clone() Transition {
	return Transition{
		State:     cloneVec(t.State),
		Action:    cloneVec(t.Action),
		Reward:    t.Reward,
		NextState: cloneVec(t.NextState),
		Absorbing: t.Absorbing,
		Last:      t.Last,
	}
}

func cloneVec(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Batch holds sampled transitions split into parallel fields, ordered by
// draw index.
type Batch struct {
	States     [][]float32
	Actions    [][]float32
	Rewards    []float64
	NextStates [][]float32
	Absorbing  []bool
	Last       []bool
}

func newBatch(n int) Batch {
	return Batch{
		States:     make([][]float32, n),
		Actions:    make([][]float32, n),
		Rewards:    make([]float64, n),
		NextStates: make([][]float32, n),
		Absorbing:  make([]bool, n),
		Last:       make([]bool, n),
	}
}

func (b *Batch) set(i int, t Transition) {
	b.States[i] = cloneVec(t.State)
	b.Actions[i] = cloneVec(t.Action)
	b.Rewards[i] = t.Reward
	b.NextStates[i] = cloneVec(t.NextState)
	b.Absorbing[i] = t.Absorbing
	b.Last[i] = t.Last
}

// Len returns the number of transitions in the batch.
func (b Batch) Len() int {
	return len(b.Rewards)
}

// Transitions reassembles the batch into records.
func (b Batch) Transitions() []Transition {
	out := make([]Transition, b.Len())
	for i := range out {
		out[i] = Transition{
			State:     b.States[i],
			Action:    b.Actions[i],
			Reward:    b.Rewards[i],
			NextState: b.NextStates[i],
			Absorbing: b.Absorbing[i],
			Last:      b.Last[i],
		}
	}
	return out
}

// Source is the uniform random source used for sampling. *rand.Rand
// satisfies it.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

func defaultSource(src Source) Source {
	if src != nil {
		return src
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

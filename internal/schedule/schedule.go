// Package schedule provides annealed scalar parameters, such as the
// importance-sampling exponent of a prioritized replay buffer.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// ErrInvalidSchedule is returned by Validate for unusable schedules.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule is a parameter whose value may change as training progresses.
type Schedule interface {
	// Value returns the current value without advancing the schedule.
	Value() float64
	// Step advances the schedule by one tick.
	Step()
}

type constant float64

// Constant returns a schedule that never changes.
func Constant(v float64) Schedule {
	return constant(v)
}

func (c constant) Value() float64 { return float64(c) }
func (constant) Step()            {}

// Linear interpolates from Start to End over Steps ticks and then holds End.
type Linear struct {
	Start float64
	End   float64
	Steps uint64

	ticks atomic.Uint64
}

// NewLinear returns a validated linear schedule.
func NewLinear(start, end float64, steps uint64) (*Linear, error) {
	l := &Linear{Start: start, End: end, Steps: steps}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks that both bounds are finite.
func (l *Linear) Validate() error {
	if math.IsNaN(l.Start) || math.IsInf(l.Start, 0) {
		return fmt.Errorf("start %v: %w", l.Start, ErrInvalidSchedule)
	}
	if math.IsNaN(l.End) || math.IsInf(l.End, 0) {
		return fmt.Errorf("end %v: %w", l.End, ErrInvalidSchedule)
	}
	return nil
}

// Value implements Schedule.
func (l *Linear) Value() float64 {
	if l.Steps == 0 {
		return l.End
	}
	t := l.ticks.Load()
	if t >= l.Steps {
		return l.End
	}
	frac := float64(t) / float64(l.Steps)
	return l.Start + frac*(l.End-l.Start)
}

// Step implements Schedule.
func (l *Linear) Step() {
	l.ticks.Add(1)
}

// Ticks returns how many times Step has been called.
func (l *Linear) Ticks() uint64 {
	return l.ticks.Load()
}

// Reset rewinds the schedule to Start.
func (l *Linear) Reset() {
	l.ticks.Store(0)
}

package events

import "context"

// Kind identifies a buffer lifecycle event.
type Kind string

const (
	// KindReady is emitted once the buffer first holds more than the
	// initial size.
	KindReady Kind = "ready"
	// KindReset is emitted after the buffer is emptied.
	KindReset Kind = "reset"
)

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishBufferEvent(ctx context.Context, event BufferEvent) error
}

// BufferEvent describes a change in buffer readiness.
type BufferEvent struct {
	Kind          Kind    `json:"kind"`
	Mode          string  `json:"mode"`
	Size          int     `json:"size"`
	Capacity      int     `json:"capacity"`
	InitialSize   int     `json:"initial_size"`
	TotalPriority float64 `json:"total_priority,omitempty"`
}

// NoopPublisher drops every event; useful for tests.
type NoopPublisher struct{}

// PublishBufferEvent satisfies Publisher.
func (NoopPublisher) PublishBufferEvent(context.Context, BufferEvent) error { return nil }

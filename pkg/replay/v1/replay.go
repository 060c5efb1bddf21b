// Package replayv1 defines the wire messages and gRPC bindings of the
// cartridge.replay.v1.Replay service. Messages are encoded as JSON.
package replayv1

// Transition is one experience record on the wire.
type Transition struct {
	State     []float32 `json:"state"`
	Action    []float32 `json:"action"`
	Reward    float64   `json:"reward"`
	NextState []float32 `json:"next_state"`
	Absorbing bool      `json:"absorbing"`
	Last      bool      `json:"last"`
}

type StoreBatchRequest struct {
	Transitions []*Transition `json:"transitions"`
}

type StoreBatchResponse struct {
	StoredCount uint32 `json:"stored_count"`
}

type SampleRequest struct {
	BatchSize uint32 `json:"batch_size"`
}

// SampleResponse carries a batch in draw order. Indices and Generations are
// set by prioritized buffers only and must be echoed back in
// UpdatePrioritiesRequest.
type SampleResponse struct {
	BatchID        string        `json:"batch_id"`
	Transitions    []*Transition `json:"transitions"`
	Indices        []int64       `json:"indices,omitempty"`
	Generations    []uint64      `json:"generations,omitempty"`
	Weights        []float64     `json:"weights"`
	TotalAvailable uint32        `json:"total_available"`
}

type UpdatePrioritiesRequest struct {
	Indices     []int64   `json:"indices"`
	Generations []uint64  `json:"generations,omitempty"`
	Errors      []float64 `json:"errors"`
}

type UpdatePrioritiesResponse struct {
	UpdatedCount uint32 `json:"updated_count"`
	SkippedCount uint32 `json:"skipped_count"`
}

type GetStatsRequest struct{}

type StatsResponse struct {
	Mode          string  `json:"mode"`
	Size          uint64  `json:"size"`
	Capacity      uint64  `json:"capacity"`
	InitialSize   uint64  `json:"initial_size"`
	Initialized   bool    `json:"initialized"`
	TotalPriority float64 `json:"total_priority"`
	MaxPriority   float64 `json:"max_priority"`
	Beta          float64 `json:"beta"`
	TotalAdded    uint64  `json:"total_added"`
	TotalSampled  uint64  `json:"total_sampled"`
}

type ResetRequest struct{}

type ResetResponse struct{}

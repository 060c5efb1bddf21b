package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cartridge/replay/internal/buffer"
	"github.com/cartridge/replay/internal/storage"
	replayv1 "github.com/cartridge/replay/pkg/replay/v1"
)

// ReplayService implements the Replay gRPC service
type ReplayService struct {
	replayv1.UnimplementedReplayServer
	backend storage.Backend
	logger  zerolog.Logger
}

// NewReplayService creates a new ReplayService
func NewReplayService(backend storage.Backend, logger zerolog.Logger) *ReplayService {
	return &ReplayService{
		backend: backend,
		logger:  logger,
	}
}

// StoreBatch stores multiple transitions in a batch
func (s *ReplayService) StoreBatch(ctx context.Context, req *replayv1.StoreBatchRequest) (*replayv1.StoreBatchResponse, error) {
	if len(req.Transitions) == 0 {
		return &replayv1.StoreBatchResponse{StoredCount: 0}, nil
	}

	transitions := make([]buffer.Transition, len(req.Transitions))
	for i, t := range req.Transitions {
		if t == nil {
			return nil, status.Errorf(codes.InvalidArgument, "transition %d is empty", i)
		}
		transitions[i] = protoToStorageTransition(t)
	}

	stored, err := s.backend.StoreBatch(ctx, transitions)
	if err != nil {
		return nil, s.toStatus(err)
	}

	return &replayv1.StoreBatchResponse{StoredCount: uint32(stored)}, nil
}

// Sample samples transitions for training
func (s *ReplayService) Sample(ctx context.Context, req *replayv1.SampleRequest) (*replayv1.SampleResponse, error) {
	if req.BatchSize == 0 {
		return nil, status.Error(codes.InvalidArgument, "batch_size must be positive")
	}

	sample, err := s.backend.Sample(ctx, int(req.BatchSize))
	if err != nil {
		return nil, s.toStatus(err)
	}

	resp := &replayv1.SampleResponse{
		BatchID:     sample.BatchID,
		Transitions: make([]*replayv1.Transition, len(sample.Transitions)),
		Generations: sample.Generations,
		Weights:     sample.Weights,
	}
	for i, t := range sample.Transitions {
		resp.Transitions[i] = storageToProtoTransition(t)
	}
	if sample.Indices != nil {
		resp.Indices = make([]int64, len(sample.Indices))
		for i, idx := range sample.Indices {
			resp.Indices[i] = int64(idx)
		}
	}

	if stats, err := s.backend.GetStats(ctx); err == nil {
		resp.TotalAvailable = uint32(stats.Size)
	}

	return resp, nil
}

// UpdatePriorities updates transition priorities from training errors
func (s *ReplayService) UpdatePriorities(ctx context.Context, req *replayv1.UpdatePrioritiesRequest) (*replayv1.UpdatePrioritiesResponse, error) {
	if len(req.Indices) != len(req.Errors) {
		return nil, status.Error(codes.InvalidArgument, "indices and errors must have same length")
	}
	if len(req.Generations) != 0 && len(req.Generations) != len(req.Indices) {
		return nil, status.Error(codes.InvalidArgument, "generations must be empty or match indices")
	}

	indices := make([]int, len(req.Indices))
	for i, idx := range req.Indices {
		indices[i] = int(idx)
	}
	var generations []uint64
	if len(req.Generations) > 0 {
		generations = req.Generations
	}

	applied, err := s.backend.UpdatePriorities(ctx, indices, generations, req.Errors)
	if err != nil {
		return nil, s.toStatus(err)
	}

	return &replayv1.UpdatePrioritiesResponse{
		UpdatedCount: uint32(applied),
		SkippedCount: uint32(len(indices) - applied),
	}, nil
}

// GetStats returns replay buffer statistics
func (s *ReplayService) GetStats(ctx context.Context, req *replayv1.GetStatsRequest) (*replayv1.StatsResponse, error) {
	stats, err := s.backend.GetStats(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}

	return &replayv1.StatsResponse{
		Mode:          string(stats.Mode),
		Size:          uint64(stats.Size),
		Capacity:      uint64(stats.Capacity),
		InitialSize:   uint64(stats.InitialSize),
		Initialized:   stats.Initialized,
		TotalPriority: stats.TotalPriority,
		MaxPriority:   stats.MaxPriority,
		Beta:          stats.Beta,
		TotalAdded:    stats.TotalAdded,
		TotalSampled:  stats.TotalSampled,
	}, nil
}

// Reset empties the buffer
func (s *ReplayService) Reset(ctx context.Context, req *replayv1.ResetRequest) (*replayv1.ResetResponse, error) {
	if err := s.backend.Reset(ctx); err != nil {
		return nil, s.toStatus(err)
	}
	return &replayv1.ResetResponse{}, nil
}

// toStatus maps backend errors onto gRPC codes.
func (s *ReplayService) toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, buffer.ErrInvalidPriority),
		errors.Is(err, buffer.ErrIndexOutOfRange),
		errors.Is(err, buffer.ErrLengthMismatch),
		errors.Is(err, buffer.ErrInvalidParameter):
		code = codes.InvalidArgument
	case errors.Is(err, storage.ErrNotReady),
		errors.Is(err, buffer.ErrNotEnoughData):
		code = codes.FailedPrecondition
	case errors.Is(err, storage.ErrNotPrioritized):
		code = codes.Unimplemented
	case errors.Is(err, storage.ErrClosed):
		code = codes.Unavailable
	default:
		code = codes.Internal
		s.logger.Error().Err(err).Msg("Replay backend failure")
	}
	return status.Error(code, err.Error())
}

// Conversion functions

func protoToStorageTransition(proto *replayv1.Transition) buffer.Transition {
	return buffer.Transition{
		State:     proto.State,
		Action:    proto.Action,
		Reward:    proto.Reward,
		NextState: proto.NextState,
		Absorbing: proto.Absorbing,
		Last:      proto.Last,
	}
}

func storageToProtoTransition(t buffer.Transition) *replayv1.Transition {
	return &replayv1.Transition{
		State:     t.State,
		Action:    t.Action,
		Reward:    t.Reward,
		NextState: t.NextState,
		Absorbing: t.Absorbing,
		Last:      t.Last,
	}
}

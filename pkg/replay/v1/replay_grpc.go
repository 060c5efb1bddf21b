package replayv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "cartridge.replay.v1.Replay"

	Replay_StoreBatch_FullMethodName       = "/cartridge.replay.v1.Replay/StoreBatch"
	Replay_Sample_FullMethodName           = "/cartridge.replay.v1.Replay/Sample"
	Replay_UpdatePriorities_FullMethodName = "/cartridge.replay.v1.Replay/UpdatePriorities"
	Replay_GetStats_FullMethodName         = "/cartridge.replay.v1.Replay/GetStats"
	Replay_Reset_FullMethodName            = "/cartridge.replay.v1.Replay/Reset"
)

// ReplayClient is the client API for the Replay service.
type ReplayClient interface {
	StoreBatch(ctx context.Context, in *StoreBatchRequest, opts ...grpc.CallOption) (*StoreBatchResponse, error)
	Sample(ctx context.Context, in *SampleRequest, opts ...grpc.CallOption) (*SampleResponse, error)
	UpdatePriorities(ctx context.Context, in *UpdatePrioritiesRequest, opts ...grpc.CallOption) (*UpdatePrioritiesResponse, error)
	GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
	Reset(ctx context.Context, in *ResetRequest, opts ...grpc.CallOption) (*ResetResponse, error)
}

type replayClient struct {
	cc grpc.ClientConnInterface
}

// NewReplayClient wraps a connection. Every call is sent with the JSON
// content-subtype.
func NewReplayClient(cc grpc.ClientConnInterface) ReplayClient {
	return &replayClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replayClient) StoreBatch(ctx context.Context, in *StoreBatchRequest, opts ...grpc.CallOption) (*StoreBatchResponse, error) {
	return invoke[StoreBatchResponse](ctx, c.cc, Replay_StoreBatch_FullMethodName, in, opts)
}

func (c *replayClient) Sample(ctx context.Context, in *SampleRequest, opts ...grpc.CallOption) (*SampleResponse, error) {
	return invoke[SampleResponse](ctx, c.cc, Replay_Sample_FullMethodName, in, opts)
}

func (c *replayClient) UpdatePriorities(ctx context.Context, in *UpdatePrioritiesRequest, opts ...grpc.CallOption) (*UpdatePrioritiesResponse, error) {
	return invoke[UpdatePrioritiesResponse](ctx, c.cc, Replay_UpdatePriorities_FullMethodName, in, opts)
}

func (c *replayClient) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	return invoke[StatsResponse](ctx, c.cc, Replay_GetStats_FullMethodName, in, opts)
}

func (c *replayClient) Reset(ctx context.Context, in *ResetRequest, opts ...grpc.CallOption) (*ResetResponse, error) {
	return invoke[ResetResponse](ctx, c.cc, Replay_Reset_FullMethodName, in, opts)
}

// ReplayServer is the server API for the Replay service.
type ReplayServer interface {
	StoreBatch(context.Context, *StoreBatchRequest) (*StoreBatchResponse, error)
	Sample(context.Context, *SampleRequest) (*SampleResponse, error)
	UpdatePriorities(context.Context, *UpdatePrioritiesRequest) (*UpdatePrioritiesResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error)
	Reset(context.Context, *ResetRequest) (*ResetResponse, error)
}

// UnimplementedReplayServer can be embedded to stay forward compatible.
type UnimplementedReplayServer struct{}

func (UnimplementedReplayServer) StoreBatch(context.Context, *StoreBatchRequest) (*StoreBatchResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method StoreBatch not implemented")
}

func (UnimplementedReplayServer) Sample(context.Context, *SampleRequest) (*SampleResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Sample not implemented")
}

func (UnimplementedReplayServer) UpdatePriorities(context.Context, *UpdatePrioritiesRequest) (*UpdatePrioritiesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdatePriorities not implemented")
}

func (UnimplementedReplayServer) GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStats not implemented")
}

func (UnimplementedReplayServer) Reset(context.Context, *ResetRequest) (*ResetResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Reset not implemented")
}

// RegisterReplayServer registers srv with s.
func RegisterReplayServer(s grpc.ServiceRegistrar, srv ReplayServer) {
	s.RegisterService(&Replay_ServiceDesc, srv)
}

func unary[Req any, Resp any](fullMethod string, call func(ReplayServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReplayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReplayServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Replay_ServiceDesc is the grpc.ServiceDesc for the Replay service.
var Replay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StoreBatch",
			Handler:    unary(Replay_StoreBatch_FullMethodName, ReplayServer.StoreBatch),
		},
		{
			MethodName: "Sample",
			Handler:    unary(Replay_Sample_FullMethodName, ReplayServer.Sample),
		},
		{
			MethodName: "UpdatePriorities",
			Handler:    unary(Replay_UpdatePriorities_FullMethodName, ReplayServer.UpdatePriorities),
		},
		{
			MethodName: "GetStats",
			Handler:    unary(Replay_GetStats_FullMethodName, ReplayServer.GetStats),
		},
		{
			MethodName: "Reset",
			Handler:    unary(Replay_Reset_FullMethodName, ReplayServer.Reset),
		},
	},
	Streams: []grpc.StreamDesc{},
}

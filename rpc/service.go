// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const poolServiceName = "poolrpc.PoolService"

// PoolServiceServer is the server API for the pool service.
type PoolServiceServer interface {
	GetPoolInfo(context.Context, *GetPoolInfoRequest) (*GetPoolInfoResponse, error)
	SubmitTransaction(context.Context, *SubmitTransactionRequest) (*TransactionReceipt, error)
	RelayDeposit(context.Context, *RelayDepositRequest) (*RelayDepositResponse, error)
	ListPendingDeposits(context.Context, *ListPendingDepositsRequest) (*ListPendingDepositsResponse, error)
	ResubmitDeposit(context.Context, *ResubmitDepositRequest) (*RelayDepositResponse, error)
	RescueDeposit(context.Context, *RescueDepositRequest) (*RescueDepositResponse, error)
	ListStuckTransfers(context.Context, *ListStuckTransfersRequest) (*ListStuckTransfersResponse, error)
	GetNullifier(context.Context, *GetNullifierRequest) (*GetNullifierResponse, error)
	GetEvents(context.Context, *GetEventsRequest) (*GetEventsResponse, error)
	SubscribeEvents(*GetEventsRequest, PoolService_SubscribeEventsServer) error
}

// PoolService_SubscribeEventsServer streams commitment events to a client.
type PoolService_SubscribeEventsServer interface {
	Send(*CommitmentEvent) error
	grpc.ServerStream
}

type poolServiceSubscribeEventsServer struct {
	grpc.ServerStream
}

func (x *poolServiceSubscribeEventsServer) Send(m *CommitmentEvent) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterPoolServiceServer registers srv with s.
func RegisterPoolServiceServer(s grpc.ServiceRegistrar, srv PoolServiceServer) {
	s.RegisterService(&PoolService_ServiceDesc, srv)
}

// unaryHandler adapts a typed service method to a grpc.MethodDesc handler.
func unaryHandler[Req any, Resp any](method string, call func(PoolServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PoolServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + poolServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(PoolServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(GetEventsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PoolServiceServer).SubscribeEvents(m, &poolServiceSubscribeEventsServer{stream})
}

// PoolService_ServiceDesc is the grpc.ServiceDesc for the pool service.
var PoolService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: poolServiceName,
	HandlerType: (*PoolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetPoolInfo", PoolServiceServer.GetPoolInfo),
		unaryHandler("SubmitTransaction", PoolServiceServer.SubmitTransaction),
		unaryHandler("RelayDeposit", PoolServiceServer.RelayDeposit),
		unaryHandler("ListPendingDeposits", PoolServiceServer.ListPendingDeposits),
		unaryHandler("ResubmitDeposit", PoolServiceServer.ResubmitDeposit),
		unaryHandler("RescueDeposit", PoolServiceServer.RescueDeposit),
		unaryHandler("ListStuckTransfers", PoolServiceServer.ListStuckTransfers),
		unaryHandler("GetNullifier", PoolServiceServer.GetNullifier),
		unaryHandler("GetEvents", PoolServiceServer.GetEvents),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeEvents",
			Handler:       subscribeEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "poolrpc",
}

// PoolServiceClient is the client API for the pool service. Every call
// is made with the JSON content subtype.
type PoolServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPoolServiceClient returns a client calling the pool service over cc.
func NewPoolServiceClient(cc grpc.ClientConnInterface) *PoolServiceClient {
	return &PoolServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *PoolServiceClient, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+poolServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PoolServiceClient) GetPoolInfo(ctx context.Context, in *GetPoolInfoRequest, opts ...grpc.CallOption) (*GetPoolInfoResponse, error) {
	return invoke[GetPoolInfoResponse](ctx, c, "GetPoolInfo", in, opts)
}

func (c *PoolServiceClient) SubmitTransaction(ctx context.Context, in *SubmitTransactionRequest, opts ...grpc.CallOption) (*TransactionReceipt, error) {
	return invoke[TransactionReceipt](ctx, c, "SubmitTransaction", in, opts)
}

func (c *PoolServiceClient) RelayDeposit(ctx context.Context, in *RelayDepositRequest, opts ...grpc.CallOption) (*RelayDepositResponse, error) {
	return invoke[RelayDepositResponse](ctx, c, "RelayDeposit", in, opts)
}

func (c *PoolServiceClient) ListPendingDeposits(ctx context.Context, in *ListPendingDepositsRequest, opts ...grpc.CallOption) (*ListPendingDepositsResponse, error) {
	return invoke[ListPendingDepositsResponse](ctx, c, "ListPendingDeposits", in, opts)
}

func (c *PoolServiceClient) ResubmitDeposit(ctx context.Context, in *ResubmitDepositRequest, opts ...grpc.CallOption) (*RelayDepositResponse, error) {
	return invoke[RelayDepositResponse](ctx, c, "ResubmitDeposit", in, opts)
}

func (c *PoolServiceClient) RescueDeposit(ctx context.Context, in *RescueDepositRequest, opts ...grpc.CallOption) (*RescueDepositResponse, error) {
	return invoke[RescueDepositResponse](ctx, c, "RescueDeposit", in, opts)
}

func (c *PoolServiceClient) ListStuckTransfers(ctx context.Context, in *ListStuckTransfersRequest, opts ...grpc.CallOption) (*ListStuckTransfersResponse, error) {
	return invoke[ListStuckTransfersResponse](ctx, c, "ListStuckTransfers", in, opts)
}

func (c *PoolServiceClient) GetNullifier(ctx context.Context, in *GetNullifierRequest, opts ...grpc.CallOption) (*GetNullifierResponse, error) {
	return invoke[GetNullifierResponse](ctx, c, "GetNullifier", in, opts)
}

func (c *PoolServiceClient) GetEvents(ctx context.Context, in *GetEventsRequest, opts ...grpc.CallOption) (*GetEventsResponse, error) {
	return invoke[GetEventsResponse](ctx, c, "GetEvents", in, opts)
}

// PoolService_SubscribeEventsClient receives streamed commitment events.
type PoolService_SubscribeEventsClient interface {
	Recv() (*CommitmentEvent, error)
	grpc.ClientStream
}

type poolServiceSubscribeEventsClient struct {
	grpc.ClientStream
}

func (x *poolServiceSubscribeEventsClient) Recv() (*CommitmentEvent, error) {
	m := new(CommitmentEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *PoolServiceClient) SubscribeEvents(ctx context.Context, in *GetEventsRequest, opts ...grpc.CallOption) (PoolService_SubscribeEventsClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &PoolService_ServiceDesc.Streams[0], "/"+poolServiceName+"/SubscribeEvents", opts...)
	if err != nil {
		return nil, err
	}
	x := &poolServiceSubscribeEventsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

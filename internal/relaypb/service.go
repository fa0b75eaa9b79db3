// Package relaypb describes the relay gRPC service. Request and response
// bodies are protobuf well-known types, so no generated code is required:
// a node travels as a Struct {"path": [...], "value": "<json>", "exists": bool}.
package relaypb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "groupsync.relay.Relay"

const (
	PutMethod   = "/" + ServiceName + "/Put"
	GetMethod   = "/" + ServiceName + "/Get"
	ListMethod  = "/" + ServiceName + "/List"
	WatchMethod = "/" + ServiceName + "/Watch"
	PingMethod  = "/" + ServiceName + "/Ping"
)

// RelayServer is implemented by the relay.
type RelayServer interface {
	// Put stores a node Struct.
	Put(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// Get takes a path Struct and returns a node Struct.
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// List takes a path Struct and returns the children as node Structs.
	List(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	// Watch streams current children of a path, then later writes.
	Watch(*structpb.Struct, Relay_WatchServer) error
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

type Relay_WatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type relayWatchServer struct {
	grpc.ServerStream
}

func (x *relayWatchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&Relay_ServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(RelayServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServer).Watch(in, &relayWatchServer{stream})
}

var Relay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: unary(PutMethod, RelayServer.Put)},
		{MethodName: "Get", Handler: unary(GetMethod, RelayServer.Get)},
		{MethodName: "List", Handler: unary(ListMethod, RelayServer.List)},
		{MethodName: "Ping", Handler: unary(PingMethod, RelayServer.Ping)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "groupsync/relay",
}

// RelayClient is the client side of the relay service.
type RelayClient interface {
	Put(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (Relay_WatchClient, error)
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type Relay_WatchClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type relayClient struct {
	cc grpc.ClientConnInterface
}

func NewRelayClient(cc grpc.ClientConnInterface) RelayClient {
	return &relayClient{cc: cc}
}

func (c *relayClient) Put(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, PutMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, PingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *relayClient) Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (Relay_WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &Relay_ServiceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &relayWatchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type relayWatchClient struct {
	grpc.ClientStream
}

func (x *relayWatchClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

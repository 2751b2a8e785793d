package mapapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "atlas.v1.MapService"

// Full method names.
const (
	CreateSessionMethod = "/" + ServiceName + "/CreateSession"
	DispatchMethod      = "/" + ServiceName + "/Dispatch"
	GetSceneMethod      = "/" + ServiceName + "/GetScene"
	CloseSessionMethod  = "/" + ServiceName + "/CloseSession"
)

// MapServiceServer is the server API of atlas.v1.MapService. Requests and
// responses are google.protobuf.Struct values keyed by JSON field names.
type MapServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetScene(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterMapServiceServer registers srv on s.
func RegisterMapServiceServer(s grpc.ServiceRegistrar, srv MapServiceServer) {
	s.RegisterService(&MapServiceDesc, srv)
}

type unaryCall func(MapServiceServer, context.Context, *structpb.Struct) (interface{}, error)

func handleUnary(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor, fullMethod string, call unaryCall) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return call(srv.(MapServiceServer), ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return call(srv.(MapServiceServer), ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func createSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return handleUnary(srv, ctx, dec, interceptor, CreateSessionMethod, func(s MapServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
		return s.CreateSession(ctx, in)
	})
}

func dispatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return handleUnary(srv, ctx, dec, interceptor, DispatchMethod, func(s MapServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
		return s.Dispatch(ctx, in)
	})
}

func getSceneHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return handleUnary(srv, ctx, dec, interceptor, GetSceneMethod, func(s MapServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
		return s.GetScene(ctx, in)
	})
}

func closeSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return handleUnary(srv, ctx, dec, interceptor, CloseSessionMethod, func(s MapServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
		return s.CloseSession(ctx, in)
	})
}

// MapServiceDesc describes atlas.v1.MapService for grpc.Server.
var MapServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MapServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: createSessionHandler},
		{MethodName: "Dispatch", Handler: dispatchHandler},
		{MethodName: "GetScene", Handler: getSceneHandler},
		{MethodName: "CloseSession", Handler: closeSessionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "atlas/v1/map_service.proto",
}

// MapServiceClient is the client API of atlas.v1.MapService.
type MapServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMapServiceClient returns a client using cc.
func NewMapServiceClient(cc grpc.ClientConnInterface) *MapServiceClient {
	return &MapServiceClient{cc: cc}
}

func (c *MapServiceClient) CreateSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CreateSessionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MapServiceClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DispatchMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MapServiceClient) GetScene(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetSceneMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MapServiceClient) CloseSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, CloseSessionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

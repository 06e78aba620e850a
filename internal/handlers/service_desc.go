package handlers

import (
	"context"

	"github.com/asakaida/catalogattr/pkg/wire"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AttributeServiceServer is the server API of catalogattr.v1.AttributeService
type AttributeServiceServer interface {
	Fetch(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	List(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	Create(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
	Update(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Delete(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	CountChildProducts(context.Context, *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error)
	MoveUp(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	MoveDown(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	Normalize(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	UpdateOrder(context.Context, *structpb.ListValue) (*emptypb.Empty, error)
}

// AttributeServiceDesc describes catalogattr.v1.AttributeService for grpc.Server.RegisterService
var AttributeServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*AttributeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(wire.MethodFetch, AttributeServiceServer.Fetch),
		unaryMethod(wire.MethodList, AttributeServiceServer.List),
		unaryMethod(wire.MethodCreate, AttributeServiceServer.Create),
		unaryMethod(wire.MethodUpdate, AttributeServiceServer.Update),
		unaryMethod(wire.MethodDelete, AttributeServiceServer.Delete),
		unaryMethod(wire.MethodCountChildProducts, AttributeServiceServer.CountChildProducts),
		unaryMethod(wire.MethodMoveUp, AttributeServiceServer.MoveUp),
		unaryMethod(wire.MethodMoveDown, AttributeServiceServer.MoveDown),
		unaryMethod(wire.MethodNormalize, AttributeServiceServer.Normalize),
		unaryMethod(wire.MethodUpdateOrder, AttributeServiceServer.UpdateOrder),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalogattr/v1/attribute_service.proto",
}

// RegisterAttributeServiceServer registers srv on s
func RegisterAttributeServiceServer(s grpc.ServiceRegistrar, srv AttributeServiceServer) {
	s.RegisterService(&AttributeServiceDesc, srv)
}

// unaryMethod adapts a typed server method to grpc.MethodDesc, running interceptors like generated code does
func unaryMethod[Req, Resp any](name string, call func(AttributeServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(AttributeServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: wire.FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

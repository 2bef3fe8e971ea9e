package allocsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName    = "allocator.v1.AllocationService"
	AllocateMethod = "/" + ServiceName + "/Allocate"
	DescribeMethod = "/" + ServiceName + "/Describe"
)

// AllocationServiceServer is the server API for the allocation service.
// Messages are google.protobuf.Struct values; see codec.go for the field
// layout.
type AllocationServiceServer interface {
	Allocate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAllocationServiceServer registers srv with s.
func RegisterAllocationServiceServer(s grpc.ServiceRegistrar, srv AllocationServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AllocationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Allocate", Handler: allocateHandler},
		{MethodName: "Describe", Handler: describeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "allocator/v1/allocation_service.proto",
}

func allocateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).Allocate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AllocateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AllocationServiceServer).Allocate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func describeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DescribeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AllocationServiceServer).Describe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Package rpc exposes stored potentials over gRPC.
//
// The service is potential.v1.PotentialService with two unary methods,
// Evaluate and Describe. Requests and responses travel as
// google.protobuf.Struct messages so no generated code is needed; codec.go
// maps them to typed Go values.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
const (
	ServiceName    = "potential.v1.PotentialService"
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
	DescribeMethod = "/" + ServiceName + "/Describe"
)

// PotentialServiceServer is the server API for the potential service.
type PotentialServiceServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes potential.v1.PotentialService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PotentialServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Describe", Handler: describeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "potential/v1/potential.proto",
}

// RegisterPotentialServiceServer registers srv on s.
func RegisterPotentialServiceServer(s grpc.ServiceRegistrar, srv PotentialServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// #endregion service-desc

// #region handlers
func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PotentialServiceServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PotentialServiceServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func describeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PotentialServiceServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DescribeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PotentialServiceServer).Describe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion handlers

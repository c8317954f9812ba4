package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name. Messages are
// google.protobuf.Struct so the service needs no generated code.
const ServiceName = "maketicket.payverify.v1.PaymentProofService"

const (
	methodVerifyText  = "/" + ServiceName + "/VerifyText"
	methodListPending = "/" + ServiceName + "/ListPending"
	methodReview      = "/" + ServiceName + "/Review"
)

// PaymentProofServer is the server API for PaymentProofService.
type PaymentProofServer interface {
	VerifyText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPending(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Review(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPaymentProofServer registers srv on s.
func RegisterPaymentProofServer(s grpc.ServiceRegistrar, srv PaymentProofServer) {
	s.RegisterService(&paymentProofServiceDesc, srv)
}

type unaryMethod func(PaymentProofServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentProofServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaymentProofServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var paymentProofServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentProofServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "VerifyText",
			Handler:    unaryHandler(methodVerifyText, PaymentProofServer.VerifyText),
		},
		{
			MethodName: "ListPending",
			Handler:    unaryHandler(methodListPending, PaymentProofServer.ListPending),
		},
		{
			MethodName: "Review",
			Handler:    unaryHandler(methodReview, PaymentProofServer.Review),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payverify/v1/payverify.proto",
}

// PaymentProofClient is the client API for PaymentProofService.
type PaymentProofClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentProofClient(cc grpc.ClientConnInterface) *PaymentProofClient {
	return &PaymentProofClient{cc: cc}
}

func (c *PaymentProofClient) VerifyText(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodVerifyText, in, opts...)
}

func (c *PaymentProofClient) ListPending(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListPending, in, opts...)
}

func (c *PaymentProofClient) Review(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodReview, in, opts...)
}

func (c *PaymentProofClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "heimdallr.idaRPC"

	MethodDisasmGoTo  = "disasmGoTo"
	MethodPseudoGoTo  = "pseudoGoTo"
	MethodGenericGoTo = "genericGoTo"
)

// GoToServer is the host side of the service.
type GoToServer interface {
	DisasmGoTo(ctx context.Context, req *GoToRequest) (*ResponseCode, error)
	PseudoGoTo(ctx context.Context, req *GoToRequest) (*ResponseCode, error)
	GenericGoTo(ctx context.Context, req *GoToRequest) (*ResponseCode, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GoToServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodDisasmGoTo, Handler: unaryHandler(MethodDisasmGoTo, GoToServer.DisasmGoTo)},
		{MethodName: MethodPseudoGoTo, Handler: unaryHandler(MethodPseudoGoTo, GoToServer.PseudoGoTo)},
		{MethodName: MethodGenericGoTo, Handler: unaryHandler(MethodGenericGoTo, GoToServer.GenericGoTo)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "heimdallr.proto",
}

// RegisterGoToServer attaches srv to a gRPC server. The server must be built
// with ServerCodec.
func RegisterGoToServer(s grpc.ServiceRegistrar, srv GoToServer) {
	s.RegisterService(&serviceDesc, srv)
}

// ServerCodec installs the message codec on a server.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(codec{})
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call func(GoToServer, context.Context, *GoToRequest) (*ResponseCode, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(GoToRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GoToServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(GoToServer), ctx, req.(*GoToRequest))
		})
	}
}

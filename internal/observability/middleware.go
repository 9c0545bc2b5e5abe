package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor logs and times every outgoing RPC.
func UnaryClientInterceptor(logger zerolog.Logger, m *Metrics) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		elapsed := time.Since(start)
		code := status.Code(err)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.
			Str("method", method).
			Str("target", cc.Target()).
			Str("code", code.String()).
			Dur("duration", elapsed).
			Msg("rpc_request")

		m.RecordRPC(method, code.String(), elapsed)
		return err
	}
}

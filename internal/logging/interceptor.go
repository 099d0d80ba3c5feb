package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is the metadata key carrying a caller-supplied request ID.
const RequestIDHeader = "x-request-id"

// UnaryInterceptor logs each unary RPC on completion and seeds the context
// with a request ID and method name for downstream loggers.
func UnaryInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(RequestIDHeader); len(ids) > 0 {
				requestID = ids[0]
			}
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx = ContextWithRequestID(ctx, requestID)
		ctx = ContextWithMethod(ctx, info.FullMethod)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		resp, err := handler(ctx, req)

		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		logger.WithContext(ctx).Info("request completed",
			"code", status.Code(err).String(),
			"server_total_ms", elapsed,
		)
		return resp, err
	}
}

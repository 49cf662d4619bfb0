package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingMiddleware logs one entry per call. Placed after Serialize in a chain it also
// reports the wire sizes.
func LoggingMiddleware(logger *zap.Logger) Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			start := time.Now()
			err := next(ctx, method, req, reply, opts...)

			fields := []zap.Field{
				zap.String("method", method),
				zap.Stringer("code", status.Code(err)),
				zap.Duration("duration", time.Since(start)),
			}
			if b, ok := req.(*[]byte); ok {
				fields = append(fields, zap.Int("request_bytes", len(*b)))
			}
			if b, ok := reply.(*[]byte); ok && err == nil {
				fields = append(fields, zap.Int("response_bytes", len(*b)))
			}

			if err != nil {
				logger.Warn("platform call failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Debug("platform call", fields...)
			return nil
		}
	}
}

package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// TimeoutMiddleware bounds each call by d. An earlier deadline already on ctx is kept.
func TimeoutMiddleware(d time.Duration) Interceptor {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, method, req, reply, opts...)
		}
	}
}

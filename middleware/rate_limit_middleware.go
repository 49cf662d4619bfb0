package middleware

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RateLimitMiddleware rejects calls beyond a token bucket of r calls per second with the
// given burst. Rejected calls never reach the transport.
func RateLimitMiddleware(r float64, burst int) Interceptor {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			if !limiter.Allow() {
				return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", method)
			}
			return next(ctx, method, req, reply, opts...)
		}
	}
}

package middleware

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const RequestIDHeader = "x-request-id"

// RequestIDMiddleware tags each call with a request id header unless the caller set one.
func RequestIDMiddleware() Interceptor {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			md, _ := metadata.FromOutgoingContext(ctx)
			if len(md.Get(RequestIDHeader)) == 0 {
				ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, uuid.NewString())
			}
			return next(ctx, method, req, reply, opts...)
		}
	}
}

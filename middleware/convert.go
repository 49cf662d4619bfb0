package middleware

import (
	"context"

	"dapi-grpc/codec"

	"google.golang.org/grpc"
)

// Serialize encodes the structured request with c and forwards the wire bytes as *[]byte.
// Encoding failures are returned as *codec.ConversionError without calling next.
func Serialize(c codec.Codec) Interceptor {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			body, err := c.Encode(req)
			if err != nil {
				return err
			}
			return next(ctx, method, &body, reply, opts...)
		}
	}
}

// Deserialize asks next for the raw response bytes and decodes them into reply with c.
func Deserialize(c codec.Codec) Interceptor {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			var raw []byte
			if err := next(ctx, method, req, &raw, opts...); err != nil {
				return err
			}
			return c.Decode(raw, reply)
		}
	}
}

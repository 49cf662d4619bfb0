// Package middleware provides the client-side interceptors wrapped around every Platform call.
//
// An Interceptor decorates an Invoker. Chain(A, B, C)(invoke) yields A(B(C(invoke))), so A sees
// the call first and the result last.
package middleware

import (
	"context"

	"google.golang.org/grpc"
)

// Invoker performs, or forwards, one unary call.
type Invoker func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error

type Interceptor func(next Invoker) Invoker

// Chain composes interceptors into one. The first interceptor is the outermost.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(next Invoker) Invoker {
		for i := len(interceptors) - 1; i >= 0; i-- {
			if interceptors[i] == nil {
				continue
			}
			next = interceptors[i](next)
		}
		return next
	}
}

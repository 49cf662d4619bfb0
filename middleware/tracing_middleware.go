package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const tracerName = "dapi-grpc/middleware"

// TracingMiddleware opens one client span per call. A nil provider uses the global one.
func TracingMiddleware(tp trace.TracerProvider) Interceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(tracerName)
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			ctx, span := tracer.Start(ctx, method,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attribute.String("rpc.system", "grpc")),
			)
			defer span.End()

			err := next(ctx, method, req, reply, opts...)
			span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(otelcodes.Error, err.Error())
			}
			return err
		}
	}
}

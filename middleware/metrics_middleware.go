package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics holds the Platform call collectors of one side of a connection.
// Create one per registry and subsystem.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers dapi_{subsystem}_calls_total and dapi_{subsystem}_call_duration_seconds
// on reg. dapictl uses "client" for outgoing calls and "server" for the fixture server.
func NewMetrics(reg prometheus.Registerer, subsystem string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dapi",
				Subsystem: subsystem,
				Name:      "calls_total",
				Help:      "Total number of Platform calls by method and status code",
			},
			[]string{"method", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dapi",
				Subsystem: subsystem,
				Name:      "call_duration_seconds",
				Help:      "Latency of Platform calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) observe(method string, start time.Time, err error) {
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	m.calls.WithLabelValues(method, status.Code(err).String()).Inc()
}

// Middleware records client calls.
func (m *Metrics) Middleware() Interceptor {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
			start := time.Now()
			err := next(ctx, method, req, reply, opts...)
			m.observe(method, start, err)
			return err
		}
	}
}

// UnaryServerInterceptor records handled calls.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.observe(info.FullMethod, start, err)
		return resp, err
	}
}

package client

import (
	"dapi-grpc/middleware"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

type options struct {
	creds        credentials.TransportCredentials
	dialOpts     []grpc.DialOption
	dialer       Dialer
	logger       *zap.Logger
	interceptors []middleware.Interceptor
}

// Option configures a Client.
type Option func(*options)

// WithCredentials sets the transport credentials. nil keeps the plaintext default.
func WithCredentials(creds credentials.TransportCredentials) Option {
	return func(o *options) {
		if creds != nil {
			o.creds = creds
		}
	}
}

// WithDialOptions passes extra options to the Dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

// WithDialer replaces the function that creates the connection.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithLogger sets the logger used for connection lifecycle messages. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInterceptors sets the interceptors every call runs through after the
// conversion pair. They see wire bytes (*[]byte) as request and reply.
func WithInterceptors(interceptors ...middleware.Interceptor) Option {
	return func(o *options) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

type callOptions struct {
	metadata     Metadata
	err          error
	interceptors []middleware.Interceptor
	replaced     bool
	replacement  []middleware.Interceptor
	grpcOpts     []grpc.CallOption
}

// CallOption configures a single call.
type CallOption func(*callOptions)

// newCallOptions applies opts and validates the resulting metadata.
func newCallOptions(opts []CallOption) (*callOptions, error) {
	co := &callOptions{}
	for _, opt := range opts {
		opt(co)
	}
	if co.err != nil {
		return nil, co.err
	}
	if err := co.metadata.Validate(); err != nil {
		return nil, err
	}
	return co, nil
}

// WithMetadata attaches headers to the call. Repeated use merges; later keys win.
func WithMetadata(md Metadata) CallOption {
	return func(co *callOptions) {
		co.metadata = co.metadata.merge(md)
	}
}

// WithMetadataObject attaches headers given as a decoded object, such as the result of
// unmarshaling JSON into an any. Anything but a key/value mapping fails the call with
// codes.InvalidArgument before it is sent.
func WithMetadataObject(v any) CallOption {
	return func(co *callOptions) {
		md, err := MetadataFromObject(v)
		if err != nil {
			if co.err == nil {
				co.err = err
			}
			return
		}
		co.metadata = co.metadata.merge(md)
	}
}

// WithCallInterceptors appends interceptors after the client's own for this call.
func WithCallInterceptors(interceptors ...middleware.Interceptor) CallOption {
	return func(co *callOptions) {
		co.interceptors = append(co.interceptors, interceptors...)
	}
}

// ReplaceInterceptors drops the client's interceptors for this call and uses these
// instead. The conversion pair always stays in place.
func ReplaceInterceptors(interceptors ...middleware.Interceptor) CallOption {
	return func(co *callOptions) {
		co.replaced = true
		co.replacement = interceptors
	}
}

// WithGRPCOptions passes call options to the transport unchanged.
func WithGRPCOptions(opts ...grpc.CallOption) CallOption {
	return func(co *callOptions) {
		co.grpcOpts = append(co.grpcOpts, opts...)
	}
}

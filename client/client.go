// Package client is the Go facade over the Platform gRPC service of a DAPI node.
//
// Each Platform method takes a structured request and returns a structured response.
// Around every call the client installs a request-serializing and a response-deserializing
// interceptor, so the transport only ever sees protobuf wire bytes:
//
//	Deserialize → Serialize → client interceptors → call interceptors → conn.Invoke
//
// Calls are synchronous; wrap any of them with Async to get a Future.
package client

import (
	"context"
	"io"
	"sync/atomic"

	"dapi-grpc/codec"
	"dapi-grpc/middleware"
	"dapi-grpc/transport"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Dialer creates the transport connection for a normalized target.
type Dialer func(target string, creds credentials.TransportCredentials, opts ...grpc.DialOption) (grpc.ClientConnInterface, error)

// Client is safe for concurrent use. Calls share only the connection.
type Client struct {
	conn         grpc.ClientConnInterface
	target       string
	codec        codec.Codec
	interceptors []middleware.Interceptor
	logger       *zap.Logger
	invoke       middleware.Invoker

	protocolVersion atomic.Pointer[string]
}

// New creates a client for the DAPI node at hostname. A scheme prefix such as "https://"
// is stripped first. Without WithCredentials the connection is plaintext.
//
// New does not connect; an unreachable node is reported by the first call.
func New(hostname string, opts ...Option) (*Client, error) {
	o := options{
		creds:  insecure.NewCredentials(),
		dialer: DialTransport,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	target := StripHostname(hostname)
	conn, err := o.dialer(target, o.creds, o.dialOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:         conn,
		target:       target,
		codec:        codec.ProtoCodec{},
		interceptors: o.interceptors,
		logger:       o.logger,
	}
	c.invoke = c.transportInvoke

	c.logger.Debug("platform client created",
		zap.String("target", target),
		zap.String("security", o.creds.Info().SecurityProtocol),
	)
	return c, nil
}

// DialTransport is the default Dialer. It dials through package transport.
func DialTransport(target string, creds credentials.TransportCredentials, opts ...grpc.DialOption) (grpc.ClientConnInterface, error) {
	cfg := transport.DefaultConfig(target)
	cfg.Credentials = creds
	conn, err := transport.Dial(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PoolDialer returns a Dialer that shares connections through pool. The pool's
// template credentials apply; the ones passed to the Dialer are ignored.
// Closing a client does not close pooled connections.
func PoolDialer(pool *transport.Pool) Dialer {
	return func(target string, _ credentials.TransportCredentials, _ ...grpc.DialOption) (grpc.ClientConnInterface, error) {
		conn, err := pool.Get(target)
		if err != nil {
			return nil, err
		}
		return shared{conn}, nil
	}
}

// shared hides Close so a client cannot close a pooled connection.
type shared struct {
	grpc.ClientConnInterface
}

// Target returns the normalized address the client dialed.
func (c *Client) Target() string { return c.target }

// SetProtocolVersion records the Platform protocol version negotiated with the node.
func (c *Client) SetProtocolVersion(version string) {
	c.protocolVersion.Store(&version)
	c.logger.Debug("protocol version set", zap.String("version", version))
}

// ProtocolVersion returns the recorded version, or "" if none was set.
func (c *Client) ProtocolVersion() string {
	if v := c.protocolVersion.Load(); v != nil {
		return *v
	}
	return ""
}

// Close releases the connection when the client owns it.
func (c *Client) Close() error {
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// call runs one Platform method. Option errors, including invalid metadata, are
// returned before anything reaches the transport.
func (c *Client) call(ctx context.Context, method string, req, reply any, opts []CallOption) error {
	co, err := newCallOptions(opts)
	if err != nil {
		return err
	}

	if len(co.metadata) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, co.metadata.pairs()...)
	}

	defaults := c.interceptors
	if co.replaced {
		defaults = co.replacement
	}
	chain := make([]middleware.Interceptor, 0, 2+len(defaults)+len(co.interceptors))
	chain = append(chain, middleware.Deserialize(c.codec), middleware.Serialize(c.codec))
	chain = append(chain, defaults...)
	chain = append(chain, co.interceptors...)

	return middleware.Chain(chain...)(c.invoke)(ctx, method, req, reply, co.grpcOpts...)
}

// transportInvoke sends the serialized request. req and reply are *[]byte here.
func (c *Client) transportInvoke(ctx context.Context, method string, req, reply any, opts ...grpc.CallOption) error {
	callOpts := make([]grpc.CallOption, 0, len(opts)+2)
	callOpts = append(callOpts, grpc.ForceCodec(codec.PassThroughCodec{}), grpc.CallContentSubtype("proto"))
	callOpts = append(callOpts, opts...)
	return c.conn.Invoke(ctx, method, req, reply, callOpts...)
}

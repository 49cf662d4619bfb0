// Package server serves the Platform service over gRPC.
//
// Request pipeline:
//
//	grpc.Server (PassThroughCodec) → wire bytes → UnmarshalWire
//	  → recovery → logging → extra interceptors → PlatformServer → MarshalWire
//
// It backs the dapictl serve command and the end-to-end tests of package client.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dapi-grpc/codec"
	"dapi-grpc/registry"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// DefaultTTL is the lease, in seconds, a node holds in the registry.
const DefaultTTL = 10

// Server runs one PlatformServer.
type Server struct {
	grpcServer *grpc.Server
	logger     *zap.Logger

	registry      registry.Registry
	service       string
	advertiseAddr string
	version       string
	weight        int

	mu       sync.Mutex
	listener net.Listener
	shutdown atomic.Bool
}

type Option func(*serverOptions)

type serverOptions struct {
	logger        *zap.Logger
	registry      registry.Registry
	service       string
	advertiseAddr string
	version       string
	weight        int
	interceptors  []grpc.UnaryServerInterceptor
	grpcOpts      []grpc.ServerOption
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry announces the server under service at advertiseAddr while it serves.
// advertiseAddr must be routable from clients, unlike a listen address such as ":3010".
func WithRegistry(reg registry.Registry, service, advertiseAddr string) Option {
	return func(o *serverOptions) {
		o.registry = reg
		o.service = service
		o.advertiseAddr = advertiseAddr
	}
}

// WithVersion sets the protocol version announced in the registry.
func WithVersion(version string) Option {
	return func(o *serverOptions) { o.version = version }
}

// WithWeight sets the weight announced in the registry.
func WithWeight(weight int) Option {
	return func(o *serverOptions) { o.weight = weight }
}

// WithUnaryInterceptors adds interceptors after recovery and logging.
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) Option {
	return func(o *serverOptions) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(o *serverOptions) {
		o.grpcOpts = append(o.grpcOpts, opts...)
	}
}

// NewServer creates a server for impl. Nothing listens until Serve.
func NewServer(impl PlatformServer, opts ...Option) *Server {
	o := serverOptions{logger: zap.NewNop(), weight: 1}
	for _, opt := range opts {
		opt(&o)
	}

	chain := append([]grpc.UnaryServerInterceptor{
		recoveryInterceptor(o.logger),
		loggingInterceptor(o.logger),
	}, o.interceptors...)
	grpcOpts := append([]grpc.ServerOption{
		grpc.ForceServerCodec(codec.PassThroughCodec{}),
		grpc.ChainUnaryInterceptor(chain...),
		// clients of package transport ping every 30s
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 10 * time.Second, PermitWithoutStream: true}),
	}, o.grpcOpts...)

	s := &Server{
		grpcServer:    grpc.NewServer(grpcOpts...),
		logger:        o.logger,
		registry:      o.registry,
		service:       o.service,
		advertiseAddr: o.advertiseAddr,
		version:       o.version,
		weight:        o.weight,
	}
	s.grpcServer.RegisterService(&ServiceDesc, impl)
	return s
}

// ListenAndServe listens on address and calls Serve.
func (s *Server) ListenAndServe(network, address string) error {
	lis, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", address, err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Shutdown. It returns nil after Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	if s.registry != nil {
		instance := registry.ServiceInstance{Addr: s.advertiseAddr, Weight: s.weight, Version: s.version}
		if err := s.registry.Register(context.Background(), s.service, instance, DefaultTTL); err != nil {
			_ = lis.Close()
			return fmt.Errorf("server: register %s: %w", s.service, err)
		}
	}

	s.logger.Info("platform server listening", zap.Stringer("addr", lis.Addr()))
	err := s.grpcServer.Serve(lis)
	if s.shutdown.Load() || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Addr returns the listen address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown deregisters the node first so clients stop picking it, then waits for
// in-flight calls. When ctx ends first the remaining calls are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)

	var err error
	if s.registry != nil {
		err = s.registry.Deregister(ctx, s.service, s.advertiseAddr)
	}

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
		return fmt.Errorf("server: timeout waiting for ongoing calls to finish: %w", ctx.Err())
	}
}

func recoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in platform handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				resp, err = nil, status.Errorf(codes.Internal, "panic in %s", info.FullMethod)
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Info("platform request failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("platform request", fields...)
		}
		return resp, err
	}
}

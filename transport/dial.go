// Package transport builds the gRPC connections Platform clients run on.
package transport

import (
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Config describes one connection to a DAPI node.
type Config struct {
	Target            string
	Credentials       credentials.TransportCredentials // nil means plaintext
	UserAgent         string
	MaxRecvMsgSize    int
	MaxSendMsgSize    int
	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration
}

// DefaultConfig returns the settings used when the caller has no opinion.
func DefaultConfig(target string) Config {
	return Config{
		Target:            target,
		UserAgent:         "dapi-grpc",
		MaxRecvMsgSize:    16 * 1024 * 1024,
		MaxSendMsgSize:    16 * 1024 * 1024,
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
	}
}

// DialOptions turns cfg into grpc dial options. opts are appended last and win.
func (cfg Config) DialOptions(opts ...grpc.DialOption) []grpc.DialOption {
	creds := cfg.Credentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.UserAgent != "" {
		dialOpts = append(dialOpts, grpc.WithUserAgent(cfg.UserAgent))
	}
	if cfg.MaxRecvMsgSize > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize)))
	}
	if cfg.MaxSendMsgSize > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize)))
	}
	if cfg.KeepaliveInterval > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveInterval,
			Timeout: cfg.KeepaliveTimeout,
		}))
	}
	return append(dialOpts, opts...)
}

// Dial creates a client connection for cfg. It does not wait for the connection to
// come up; failures surface on the first call.
func Dial(cfg Config, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(cfg.Target, cfg.DialOptions(opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Target, err)
	}
	return conn, nil
}

package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// Pool shares one connection per target. gRPC connections multiplex concurrent
// calls, so a single connection per node is enough.
type Pool struct {
	mu     sync.Mutex
	conns  map[string]*grpc.ClientConn
	config Config
	opts   []grpc.DialOption
	closed bool
}

// NewPool creates an empty pool. Every connection it creates uses template with the
// target replaced.
func NewPool(template Config, opts ...grpc.DialOption) *Pool {
	return &Pool{
		conns:  make(map[string]*grpc.ClientConn),
		config: template,
		opts:   opts,
	}
}

// Get returns the pooled connection for target, creating it on first use. A connection
// that has shut down is replaced.
func (p *Pool) Get(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("transport: pool is closed")
	}

	if conn, ok := p.conns[target]; ok {
		if usable(conn) {
			return conn, nil
		}
		_ = conn.Close()
		delete(p.conns, target)
	}

	cfg := p.config
	cfg.Target = target
	conn, err := Dial(cfg, p.opts...)
	if err != nil {
		return nil, err
	}
	p.conns[target] = conn
	return conn, nil
}

// Connect gets the connection for target and waits until it is ready, has failed or
// ctx is done. It returns the last state seen.
func (p *Pool) Connect(ctx context.Context, target string) (connectivity.State, error) {
	conn, err := p.Get(target)
	if err != nil {
		return connectivity.Shutdown, err
	}

	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready, connectivity.TransientFailure, connectivity.Shutdown:
			return state, nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return conn.GetState(), nil
		}
	}
}

// usable reports whether conn can still carry calls. TransientFailure recovers on its own.
func usable(conn *grpc.ClientConn) bool {
	return conn.GetState() != connectivity.Shutdown
}

// Status returns the connectivity state of every pooled connection.
func (p *Pool) Status() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := make(map[string]string, len(p.conns))
	for target, conn := range p.conns {
		status[target] = conn.GetState().String()
	}
	return status
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close closes every connection. The pool cannot be used afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for target, conn := range p.conns {
		if cerr := conn.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close connection to %s: %w", target, cerr))
		}
		delete(p.conns, target)
	}
	p.closed = true
	return err
}

// Package registry tracks the DAPI nodes a Platform client can talk to.
package registry

import "context"

// ServiceInstance is one reachable DAPI node.
type ServiceInstance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"`  // relative share for weighted balancing
	Version string `json:"version"` // Platform protocol version spoken by the node
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	// Watch emits the full instance list on every change until ctx is done.
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}

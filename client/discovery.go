package client

import (
	"context"
	"fmt"

	"dapi-grpc/loadbalance"
	"dapi-grpc/registry"
)

// DefaultService is the registry name DAPI nodes announce themselves under.
const DefaultService = "platform"

// NewFromRegistry discovers the nodes announced for service, lets bal pick one and
// creates a client for it. The node's announced version becomes the client's
// protocol version.
func NewFromRegistry(ctx context.Context, reg registry.Registry, bal loadbalance.Balancer, service string, opts ...Option) (*Client, error) {
	instances, err := reg.Discover(ctx, service)
	if err != nil {
		return nil, err
	}

	instance, err := bal.Pick(instances)
	if err != nil {
		return nil, fmt.Errorf("client: pick %s node with %s: %w", service, bal.Name(), err)
	}

	c, err := New(instance.Addr, opts...)
	if err != nil {
		return nil, err
	}
	if instance.Version != "" {
		c.SetProtocolVersion(instance.Version)
	}
	return c, nil
}

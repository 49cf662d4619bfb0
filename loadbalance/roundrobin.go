package loadbalance

import (
	"sync/atomic"

	"dapi-grpc/registry"
)

// RoundRobinBalancer cycles through the instances with a lock-free counter.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := (b.counter.Add(1) - 1) % uint64(len(instances))
	instance := instances[index]
	return &instance, nil
}

func (b *RoundRobinBalancer) Name() string {
	return "round_robin"
}

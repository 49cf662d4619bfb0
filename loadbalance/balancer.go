// Package loadbalance picks the DAPI node a new Platform client connects to.
//
//   - RoundRobin:     nodes of equal capacity
//   - WeightedRandom: nodes announcing different weights
//   - ConsistentHash: the same key (an identity id, a contract id) sticks to the same node
package loadbalance

import (
	"errors"
	"fmt"

	"dapi-grpc/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer selects one instance from the discovered list. Implementations are goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
	}
}

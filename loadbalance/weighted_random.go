package loadbalance

import (
	"math/rand/v2"

	"dapi-grpc/registry"
)

// WeightedRandomBalancer picks an instance with probability proportional to its weight.
// Non-positive weights count as zero; if every weight is zero the pick is uniform.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	totalWeight := 0
	for _, v := range instances {
		if v.Weight > 0 {
			totalWeight += v.Weight
		}
	}
	if totalWeight == 0 {
		instance := instances[rand.IntN(len(instances))]
		return &instance, nil
	}

	r := rand.IntN(totalWeight)
	for _, v := range instances {
		if v.Weight <= 0 {
			continue
		}
		r -= v.Weight
		if r < 0 {
			instance := v
			return &instance, nil
		}
	}

	// unreachable: r < totalWeight
	instance := instances[len(instances)-1]
	return &instance, nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "weighted_random"
}

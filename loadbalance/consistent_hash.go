package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"dapi-grpc/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps keys onto a hash ring of instances. Each instance owns
// defaultReplicas virtual nodes so load spreads evenly. It is keyed, so it does not
// implement Balancer.
type ConsistentHashBalancer struct {
	mu       sync.RWMutex
	replicas int
	ring     []uint32
	nodes    map[uint32]registry.ServiceInstance
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: defaultReplicas,
		nodes:    make(map[uint32]registry.ServiceInstance),
	}
}

// Add places instance on the ring.
func (b *ConsistentHashBalancer) Add(instance registry.ServiceInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(instance)
	b.sortRing()
}

// Sync rebuilds the ring from a fresh instance list, e.g. a registry Watch update.
func (b *ConsistentHashBalancer) Sync(instances []registry.ServiceInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]registry.ServiceInstance, len(instances)*b.replicas)
	for _, instance := range instances {
		b.add(instance)
	}
	b.sortRing()
}

func (b *ConsistentHashBalancer) add(instance registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		if _, taken := b.nodes[hash]; !taken {
			b.ring = append(b.ring, hash)
		}
		b.nodes[hash] = instance
	}
}

func (b *ConsistentHashBalancer) sortRing() {
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// PickKey returns the instance owning key: the first virtual node clockwise from its hash.
func (b *ConsistentHashBalancer) PickKey(key string) (*registry.ServiceInstance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}

	instance := b.nodes[b.ring[idx]]
	return &instance, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent_hash"
}

// Keyed adapts b to Balancer for one key. Each Pick rebuilds the ring from the
// offered instances, so the same key lands on the same node while the list is stable.
func Keyed(b *ConsistentHashBalancer, key string) Balancer {
	return keyed{ring: b, key: key}
}

type keyed struct {
	ring *ConsistentHashBalancer
	key  string
}

func (k keyed) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	k.ring.Sync(instances)
	return k.ring.PickKey(k.key)
}

func (k keyed) Name() string { return k.ring.Name() }

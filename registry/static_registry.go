package registry

import (
	"context"
	"sync"
)

// StaticRegistry serves a fixed seed list, typically read from configuration.
// Register and Deregister edit the in-memory list.
type StaticRegistry struct {
	mu       sync.RWMutex
	services map[string][]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		services: make(map[string][]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
}

// Register adds or replaces the instance with the same address. ttl is ignored.
func (r *StaticRegistry) Register(_ context.Context, serviceName string, instance ServiceInstance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.services[serviceName]
	for i := range list {
		if list[i].Addr == instance.Addr {
			list[i] = instance
			r.notify(serviceName)
			return nil
		}
	}
	r.services[serviceName] = append(list, instance)
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(_ context.Context, serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.services[serviceName]
	for i := range list {
		if list[i].Addr == addr {
			r.services[serviceName] = append(list[:i:i], list[i+1:]...)
			r.notify(serviceName)
			return nil
		}
	}
	return nil
}

func (r *StaticRegistry) Discover(_ context.Context, serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(serviceName), nil
}

func (r *StaticRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	r.mu.Lock()
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		watchers := r.watchers[serviceName]
		for i := range watchers {
			if watchers[i] == ch {
				r.watchers[serviceName] = append(watchers[:i:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch
}

func (r *StaticRegistry) snapshot(serviceName string) []ServiceInstance {
	return append([]ServiceInstance(nil), r.services[serviceName]...)
}

// notify replaces any unread update with the latest list. Callers hold r.mu.
func (r *StaticRegistry) notify(serviceName string) {
	list := r.snapshot(serviceName)
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}

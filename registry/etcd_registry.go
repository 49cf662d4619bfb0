package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// KeyPrefix is the root of every key this registry writes:
//
//	/dapi/{serviceName}/{addr} -> JSON-encoded ServiceInstance
const KeyPrefix = "/dapi/"

// EtcdRegistry stores node announcements in etcd. Entries are bound to TTL leases, so a
// node that stops renewing disappears on its own.
type EtcdRegistry struct {
	client *clientv3.Client
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]leaseHandle // by key
}

// leaseHandle is a lease granted by Register together with the cancel func of its renewals.
type leaseHandle struct {
	id   clientv3.LeaseID
	stop context.CancelFunc
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect to etcd %v: %w", endpoints, err)
	}
	return &EtcdRegistry{client: c, logger: logger, leases: make(map[string]leaseHandle)}, nil
}

func servicePrefix(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// Register announces instance under serviceName and keeps its lease alive until ctx is done
// or the instance is deregistered. Registering the same address again replaces its lease.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := servicePrefix(serviceName) + instance.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", key, err)
	}

	renewCtx, stop := context.WithCancel(ctx)
	ch, err := r.client.KeepAlive(renewCtx, lease.ID)
	if err != nil {
		stop()
		return fmt.Errorf("registry: keep lease alive: %w", err)
	}

	r.mu.Lock()
	prev, replaced := r.leases[key]
	r.leases[key] = leaseHandle{id: lease.ID, stop: stop}
	r.mu.Unlock()
	if replaced {
		r.release(ctx, key, prev)
	}

	// drain renewals; the channel closes when renewCtx is done or the lease is lost
	go func() {
		for range ch {
		}
		r.logger.Debug("lease renewal stopped", zap.String("key", key))
	}()
	return nil
}

// Deregister removes the announcement of addr. A lease granted by Register for it is revoked
// and its renewals stop.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	key := servicePrefix(serviceName) + addr

	r.mu.Lock()
	h, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()
	if ok {
		h.stop()
		if _, err := r.client.Revoke(ctx, h.id); err != nil {
			return fmt.Errorf("registry: revoke lease of %s: %w", addr, err)
		}
	}

	// the key may have been written by another process
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("registry: delete %s: %w", addr, err)
	}
	return nil
}

// release stops renewing a replaced lease and revokes it.
func (r *EtcdRegistry) release(ctx context.Context, key string, h leaseHandle) {
	h.stop()
	if _, err := r.client.Revoke(ctx, h.id); err != nil {
		r.logger.Warn("revoke replaced lease failed", zap.String("key", key), zap.Error(err))
	}
}

// Watch re-reads the whole instance list on every change under the service prefix.
func (r *EtcdRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(ctx, serviceName)
			if err != nil {
				r.logger.Warn("discover after watch event failed", zap.String("service", serviceName), zap.Error(err))
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("registry: discover %s: %w", serviceName, err)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close stops all lease renewals and closes the etcd client. Leases are left to expire.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, h := range r.leases {
		h.stop()
		delete(r.leases, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}

package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// etcdEndpoints returns the endpoints from DAPI_ETCD_ENDPOINTS or skips the test.
func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	env := os.Getenv("DAPI_ETCD_ENDPOINTS")
	if env == "" {
		t.Skip("DAPI_ETCD_ENDPOINTS not set")
	}
	return strings.Split(env, ",")
}

func TestRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	service := "platform-test-" + time.Now().Format("150405.000000")
	inst1 := ServiceInstance{Addr: "127.0.0.1:3010", Weight: 10, Version: "1"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:3011", Weight: 5, Version: "1"}

	if err := reg.Register(ctx, service, inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, service, inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	reg.mu.Lock()
	lease, ok := reg.leases[servicePrefix(service)+inst1.Addr]
	reg.mu.Unlock()
	if !ok {
		t.Fatalf("no lease recorded for %s", inst1.Addr)
	}

	if err := reg.Deregister(ctx, service, inst1.Addr); err != nil {
		t.Fatal(err)
	}

	ttl, err := reg.client.TimeToLive(ctx, lease.id)
	if err != nil {
		t.Fatal(err)
	}
	if ttl.TTL != -1 {
		t.Fatalf("expect lease of %s to be revoked, TTL is %d", inst1.Addr, ttl.TTL)
	}

	instances, err = reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].Addr != inst2.Addr {
		t.Fatalf("expect only %s after deregister, got %v", inst2.Addr, instances)
	}

	_ = reg.Deregister(ctx, service, inst2.Addr)
}

func TestReRegisterReplacesLease(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	service := "platform-test-" + time.Now().Format("150405.000000")
	inst := ServiceInstance{Addr: "127.0.0.1:3010", Version: "1"}
	key := servicePrefix(service) + inst.Addr

	if err := reg.Register(ctx, service, inst, 10); err != nil {
		t.Fatal(err)
	}
	first := reg.leases[key].id

	inst.Version = "2"
	if err := reg.Register(ctx, service, inst, 10); err != nil {
		t.Fatal(err)
	}
	if len(reg.leases) != 1 || reg.leases[key].id == first {
		t.Fatalf("expect one fresh lease for %s, got %v", key, reg.leases)
	}

	ttl, err := reg.client.TimeToLive(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if ttl.TTL != -1 {
		t.Fatalf("expect replaced lease to be revoked, TTL is %d", ttl.TTL)
	}

	instances, err := reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].Version != "2" {
		t.Fatalf("expect the re-registered instance, got %v", instances)
	}

	if err := reg.Deregister(ctx, service, inst.Addr); err != nil {
		t.Fatal(err)
	}
	if len(reg.leases) != 0 {
		t.Fatalf("expect no leases after deregister, got %v", reg.leases)
	}
}

package tagcache

import (
	"context"
	"testing"
	"time"

	c "github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/util"
)

func TestSweepDriverSharedPerEndpoint(t *testing.T) {
	reg := NewSweepRegistry()
	ms := newMemStore("redis-a:6379")

	mk := func() Cache[user] {
		cc, err := New[user](Options[user]{
			Store:         ms,
			Codec:         c.JSON[user]{},
			SweepInterval: time.Hour, // never fires during the test
			Registry:      reg,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return cc
	}
	cc1 := mk()
	cc2 := mk()
	defer cc1.Close(context.Background())
	defer cc2.Close(context.Background())

	eps := reg.Endpoints()
	if len(eps) != 1 || eps[0] != "redis-a:6379" {
		t.Fatalf("expected one shared driver for the endpoint, got %v", eps)
	}

	// A second endpoint gets its own driver.
	other := newMemStore("redis-b:6379")
	cc3, err := New[user](Options[user]{
		Store:         other,
		Codec:         c.JSON[user]{},
		SweepInterval: time.Hour,
		Registry:      reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cc3.Close(context.Background())

	if got := len(reg.Endpoints()); got != 2 {
		t.Fatalf("expected two drivers, got %d (%v)", got, reg.Endpoints())
	}
}

func TestSweepDriverPurgesExpiredEntries(t *testing.T) {
	reg := NewSweepRegistry()
	ms := newMemStore("redis-c:6379")
	cc, err := New[user](Options[user]{
		Store:         ms,
		Codec:         c.JSON[user]{},
		SweepInterval: 20 * time.Millisecond,
		GracePeriod:   time.Second,
		Registry:      reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cc.Close(context.Background())

	ctx := context.Background()
	if err := cc.Set(ctx, "dead", user{ID: "d"}, time.Now().Add(-time.Hour), []string{"t"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	waitFor(t, 2*time.Second, "sweep to purge the expired entry", func() bool {
		return !ms.hasString(util.EntryKey("dead"))
	})
	if got := ms.setMembersOf(util.TagsByKeyKey("dead")); len(got) != 0 {
		t.Fatalf("sweep should clear key->tags, got %v", got)
	}
}

func TestRegistryEnsureReportsOwnership(t *testing.T) {
	reg := NewSweepRegistry()
	ran := func(context.Context) {}

	if !reg.Ensure("ep", time.Hour, ran) {
		t.Fatalf("first Ensure should start the driver")
	}
	if reg.Ensure("ep", time.Hour, ran) {
		t.Fatalf("second Ensure for the same endpoint must join, not start")
	}
}

func TestRegistryEnsureRejectsBadInput(t *testing.T) {
	reg := NewSweepRegistry()
	ran := func(context.Context) {}

	if reg.Ensure("ep", 0, ran) {
		t.Fatalf("zero interval must not start a driver")
	}
	if reg.Ensure("ep", -time.Second, ran) {
		t.Fatalf("negative interval must not start a driver")
	}
	if reg.Ensure("ep", time.Hour, nil) {
		t.Fatalf("nil run must not start a driver")
	}
	if got := reg.Endpoints(); len(got) != 0 {
		t.Fatalf("no drivers should be registered, got %v", got)
	}
}

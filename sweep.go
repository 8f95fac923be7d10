package tagcache

import (
	"context"
	"sync"
	"time"
)

// SweepRegistry holds one periodic sweep driver per distinct store endpoint,
// so multiple caches pointed at the same endpoint share a single driver
// instead of each running a redundant loop. Drivers are created lazily on
// first cache construction for an endpoint and are never stopped during
// normal operation; the registry is process-lifetime state.
//
// New's default is a package-level shared registry; pass a private one via
// Options.Registry to isolate tests or unusual topologies.
type SweepRegistry struct {
	mu      sync.Mutex
	drivers map[string]*sweepDriver
}

func NewSweepRegistry() *SweepRegistry {
	return &SweepRegistry{drivers: make(map[string]*sweepDriver)}
}

var (
	sharedRegOnce sync.Once
	sharedReg     *SweepRegistry
)

func sharedSweepRegistry() *SweepRegistry {
	sharedRegOnce.Do(func() { sharedReg = NewSweepRegistry() })
	return sharedReg
}

// Ensure starts a driver for endpoint unless one is already running.
// Returns true when this call started the driver. A non-positive interval or
// nil run starts nothing. The run callback belongs to the first cache
// registered for the endpoint; later caches share its sweeps, which cover the
// whole shared keyspace anyway.
func (r *SweepRegistry) Ensure(endpoint string, interval time.Duration, run func(context.Context)) bool {
	if interval <= 0 || run == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[endpoint]; ok {
		return false
	}
	d := &sweepDriver{interval: interval, run: run}
	r.drivers[endpoint] = d
	go d.loop()
	return true
}

// Endpoints lists the endpoints with a running driver.
func (r *SweepRegistry) Endpoints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.drivers))
	for ep := range r.drivers {
		out = append(out, ep)
	}
	return out
}

type sweepDriver struct {
	interval time.Duration
	run      func(context.Context)
}

func (d *sweepDriver) loop() {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for range t.C {
		// one interval is also the budget for the sweep itself
		ctx, cancel := context.WithTimeout(context.Background(), d.interval)
		d.run(ctx)
		cancel()
	}
}

// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/tagcache"
//	"github.com/unkn0wn-root/tagcache/hooks/async"
//	"github.com/unkn0wn-root/tagcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    LazyRemovalEvery: 10, // sample logs: ~every 10th lazy removal
//	    StaleMemberEvery: 1,  // log every stale tag member
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := tagcache.New[User](tagcache.Options[User]{
//	    Store: st,
//	    Codec: codec.JSON[User]{},
//	    Hooks: hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	inner tagcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) EntryCorrupt(k, r string) { h.try(func() { h.inner.EntryCorrupt(k, r) }) }
func (h *Hooks) LazyRemoval(k string)     { h.try(func() { h.inner.LazyRemoval(k) }) }
func (h *Hooks) StaleTagMember(t, k string) {
	h.try(func() { h.inner.StaleTagMember(t, k) })
}
func (h *Hooks) IndexUpdateFailed(k string, err error) {
	h.try(func() { h.inner.IndexUpdateFailed(k, err) })
}
func (h *Hooks) SweepCompleted(ep string, scanned, removed int) {
	h.try(func() { h.inner.SweepCompleted(ep, scanned, removed) })
}

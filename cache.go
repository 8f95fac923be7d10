package tagcache

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/expiry"
	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/internal/wire"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/tagindex"
)

const (
	defaultOpTimeout   = 100 * time.Millisecond
	defaultTTLMargin   = time.Minute
	defaultGracePeriod = 5 * time.Minute

	// background lazy removals get their own bound; the read that
	// triggered them has long returned
	lazyRemoveTimeout = 5 * time.Second

	// sweep removal fan-out
	sweepChunk   = 64
	sweepWorkers = 4
)

type cache[V any] struct {
	store store.Store
	codec codec.Codec[V]
	log   Logger
	hooks Hooks

	tags   *tagindex.Manager
	expiry *expiry.Manager

	opTimeout time.Duration
	ttlMargin time.Duration
	grace     time.Duration

	now func() time.Time // swapped in tests
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("tagcache: store is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("tagcache: codec is required")
	}

	c := &cache[V]{
		store:  opts.Store,
		codec:  opts.Codec,
		tags:   tagindex.New(opts.Store),
		expiry: expiry.New(opts.Store),
		now:    time.Now,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.opTimeout = coalesce[time.Duration](opts.OpTimeout, defaultOpTimeout)
	c.ttlMargin = coalesce[time.Duration](opts.TTLMargin, defaultTTLMargin)
	c.grace = coalesce[time.Duration](opts.GracePeriod, defaultGracePeriod)

	if opts.SweepInterval > 0 {
		reg := opts.Registry
		if reg == nil {
			reg = sharedSweepRegistry()
		}
		started := reg.Ensure(opts.Store.Endpoint(), opts.SweepInterval, func(ctx context.Context) {
			_, _ = c.RemoveExpiredKeys(ctx)
		})
		if !started {
			c.log.Debug("sweep driver already running for endpoint",
				Fields{"endpoint": opts.Store.Endpoint()})
		}
	}

	return c, nil
}

func (c *cache[V]) Close(ctx context.Context) error {
	// sweep drivers are process-lifetime by design; only the store goes
	return c.store.Close(ctx)
}

// opCtx bounds a store round-trip by the configured per-call timeout.
// Tag-index batches never go through here.
func (c *cache[V]) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, expiresAt time.Time, tags []string) error {
	if isNil(value) {
		return ErrNilValue
	}
	if err := validateTags(tags); err != nil {
		return err
	}

	payload, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("tagcache: encode %q: %w", key, err)
	}

	now := c.now()
	raw := wire.EncodeEntry(expiresAt, tags, payload)

	qctx, cancel := c.opCtx(ctx)
	err = c.store.SetString(qctx, util.EntryKey(key), raw, storeTTL(now, expiresAt, c.ttlMargin))
	cancel()
	if err != nil {
		// indices stay untouched when the entry write fails
		return err
	}

	if err := c.updateIndexes(ctx, key, tags, expiresAt); err != nil {
		// entry stands with a stale or missing index until a read or sweep
		// reconciles it; no rollback
		c.hooks.IndexUpdateFailed(key, err)
		return err
	}
	return nil
}

// storeTTL keeps the entry alive in the store slightly longer than its
// logical expiry so cleanup driven by the logical expiry still finds it.
func storeTTL(now, expiresAt time.Time, margin time.Duration) time.Duration {
	ttl := expiresAt.Sub(now).Truncate(time.Second)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl + margin
}

// updateIndexes moves both tag indices and the expiry record after a
// successful entry write. The key->tags rewrite and the tag->keys updates are
// one logical unit spread over separate store transactions; see the package
// doc for the consistency window this opens.
func (c *cache[V]) updateIndexes(ctx context.Context, key string, newTags []string, expiresAt time.Time) error {
	oldTags, err := c.tags.GetTagsForKey(ctx, key)
	if err != nil {
		return fmt.Errorf("read prior tags for %q: %w", key, err)
	}

	c.log.Debug("updating tag index", Fields{"key": key, "tags": newTags, "prior": len(oldTags)})

	if err := c.tags.UpdateTags(ctx, key, newTags); err != nil {
		return fmt.Errorf("update key->tags for %q: %w", key, err)
	}
	if err := c.tags.AddKeyToTags(ctx, key, newTags); err != nil {
		return fmt.Errorf("add %q to tag sets: %w", key, err)
	}
	if stale := diff(oldTags, newTags); len(stale) > 0 {
		if err := c.tags.RemoveKeyFromTags(ctx, key, stale); err != nil {
			return fmt.Errorf("remove %q from stale tag sets: %w", key, err)
		}
	}

	qctx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.expiry.SetKeyExpiry(qctx, key, expiresAt); err != nil {
		return fmt.Errorf("record expiry for %q: %w", key, err)
	}
	return nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	qctx, cancel := c.opCtx(ctx)
	defer cancel()

	raw, ok, err := c.store.GetString(qctx, util.EntryKey(key))
	if err != nil || !ok {
		return zero, false, err
	}

	ent, err := wire.DecodeEntry(raw)
	if err != nil {
		c.hooks.EntryCorrupt(key, "envelope")
		_ = c.store.DeleteKeys(qctx, util.EntryKey(key)) // self-heal corrupt
		return zero, false, nil
	}
	if ent.ExpiresAt.Before(c.now()) {
		c.removeAsync(key)
		return zero, false, nil
	}

	v, err := c.codec.Decode(ent.Payload)
	if err != nil {
		c.hooks.EntryCorrupt(key, "value_decode")
		_ = c.store.DeleteKeys(qctx, util.EntryKey(key)) // self-heal
		return zero, false, nil
	}
	return v, true, nil
}

func (c *cache[V]) GetByTag(ctx context.Context, tag string) (map[string]V, error) {
	qctx, cancel := c.opCtx(ctx)
	keys, err := c.tags.GetKeysForTag(qctx, tag)
	cancel()
	if err != nil {
		return nil, err
	}

	out := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = util.EntryKey(k)
	}

	qctx, cancel = c.opCtx(ctx)
	raws, err := c.store.GetStrings(qctx, entryKeys)
	cancel()
	if err != nil {
		return nil, err
	}

	now := c.now()
	var dead []string
	for i, k := range keys {
		raw, ok := raws[entryKeys[i]]
		if !ok {
			// entry gone (store TTL fired, or a Remove left the membership
			// behind); repair the tag set
			c.hooks.StaleTagMember(tag, k)
			dead = append(dead, k)
			continue
		}
		ent, err := wire.DecodeEntry(raw)
		if err != nil {
			c.hooks.EntryCorrupt(k, "envelope")
			dead = append(dead, k)
			c.removeAsync(k)
			continue
		}
		if ent.ExpiresAt.Before(now) {
			c.removeAsync(k)
			continue
		}
		v, err := c.codec.Decode(ent.Payload)
		if err != nil {
			c.hooks.EntryCorrupt(k, "value_decode")
			dead = append(dead, k)
			c.removeAsync(k)
			continue
		}
		out[k] = v
	}

	if len(dead) > 0 {
		c.log.Debug("repairing tag set", Fields{"tag": tag, "dead": len(dead)})
		qctx, cancel = c.opCtx(ctx)
		if err := c.store.SetRemove(qctx, util.KeysByTagKey(tag), dead...); err != nil {
			c.log.Warn("tag set repair failed", Fields{"tag": tag, "err": err})
		}
		cancel()
	}
	return out, nil
}

// Remove is independent of freshness. See Cache.Remove for the reverse-index
// asymmetry it deliberately keeps.
func (c *cache[V]) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		entryKeys[i] = util.EntryKey(k)
	}

	c.log.Debug("removing entries", Fields{"keys": len(keys)})

	qctx, cancel := c.opCtx(ctx)
	entryErr := c.store.DeleteKeys(qctx, entryKeys...)
	cancel()

	qctx, cancel = c.opCtx(ctx)
	tagsErr := c.tags.RemoveTagsForKey(qctx, keys...)
	cancel()

	qctx, cancel = c.opCtx(ctx)
	expiryErr := c.expiry.RemoveKeyExpiry(qctx, keys...)
	cancel()

	if entryErr != nil || tagsErr != nil || expiryErr != nil {
		return &RemoveError{Keys: keys, EntryErr: entryErr, TagsErr: tagsErr, ExpiryErr: expiryErr}
	}
	return nil
}

func (c *cache[V]) RemoveByTag(ctx context.Context, tag string) error {
	qctx, cancel := c.opCtx(ctx)
	keys, err := c.tags.GetKeysForTag(qctx, tag)
	cancel()
	if err != nil {
		return err
	}

	c.log.Debug("removing by tag", Fields{"tag": tag, "keys": len(keys)})

	if len(keys) > 0 {
		if err := c.Remove(ctx, keys...); err != nil {
			return err
		}
	}

	qctx, cancel = c.opCtx(ctx)
	defer cancel()
	return c.tags.DeleteTag(qctx, tag)
}

// RemoveExpiredKeys consumes the expiry index up to now+grace and purges each
// key through the full removal path. The grace widening compensates for clock
// skew and for the store-TTL margin entries are written with.
func (c *cache[V]) RemoveExpiredKeys(ctx context.Context) (int, error) {
	maxDate := c.now().Add(c.grace)

	qctx, cancel := c.opCtx(ctx)
	keys, err := c.expiry.GetExpiredKeys(qctx, maxDate)
	cancel()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		c.hooks.SweepCompleted(c.store.Endpoint(), 0, 0)
		return 0, nil
	}

	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepWorkers)
	for start := 0; start < len(keys); start += sweepChunk {
		chunk := keys[start:min(start+sweepChunk, len(keys))]
		g.Go(func() error {
			if err := c.Remove(gctx, chunk...); err != nil {
				return err
			}
			removed.Add(int64(len(chunk)))
			return nil
		})
	}
	err = g.Wait()

	n := int(removed.Load())
	c.hooks.SweepCompleted(c.store.Endpoint(), len(keys), n)
	c.log.Debug("sweep completed", Fields{"scanned": len(keys), "removed": n})
	return n, err
}

// removeAsync dispatches a full removal without blocking the read path.
// The outcome never reaches the reader.
func (c *cache[V]) removeAsync(key string) {
	c.hooks.LazyRemoval(key)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lazyRemoveTimeout)
		defer cancel()
		if err := c.Remove(ctx, key); err != nil {
			c.log.Warn("lazy removal failed", Fields{"key": key, "err": err})
		}
	}()
}

// validateTags rejects caller tags the entry envelope cannot carry; the wire
// encoder treats a bad tag as an internal invariant violation and panics.
func validateTags(tags []string) error {
	for _, t := range tags {
		if t == "" {
			return fmt.Errorf("%w: empty tag", ErrInvalidTag)
		}
		if len(t) > wire.MaxTagLen {
			return fmt.Errorf("%w: tag exceeds %d bytes", ErrInvalidTag, wire.MaxTagLen)
		}
	}
	return nil
}

// diff returns the members of old not present in cur.
func diff(old, cur []string) []string {
	if len(old) == 0 {
		return nil
	}
	keep := make(map[string]struct{}, len(cur))
	for _, t := range cur {
		keep[t] = struct{}{}
	}
	var out []string
	for _, t := range old {
		if _, ok := keep[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// isNil reports whether the caller handed us a nil value behind the generic
// parameter (nil interface, pointer, map, slice, func, or channel).
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

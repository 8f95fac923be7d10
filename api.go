package tagcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/tagcache/codec"
	st "github.com/unkn0wn-root/tagcache/store"
)

// Cache is the public façade: typed entries keyed by string, optionally
// associated with tags for bulk invalidation, expired by a logical timestamp
// the backing store's own TTL only backstops.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	// Set writes value under key with the given logical expiry and tag set.
	// Tags replace any prior association wholesale - a Set without tags
	// clears the key's tags. A nil value is rejected with ErrNilValue, an
	// empty or oversized tag with ErrInvalidTag; in both cases nothing is
	// written.
	Set(ctx context.Context, key string, value V, expiresAt time.Time, tags []string) error

	// Get returns (value, true, nil) on a fresh hit. A miss - absent,
	// logically expired, or undecodable - is (zero, false, nil), never an
	// error; only store connectivity and timeout conditions surface as err.
	// Discovering an expired entry dispatches its removal in the background.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// GetByTag resolves the tag's member keys and returns the values that
	// pass the same freshness check as Get, keyed by cache key. Stale hits
	// trigger the same background removal. Empty map when the tag has no
	// live members.
	GetByTag(ctx context.Context, tag string) (map[string]V, error)

	// Remove deletes the entries, each key's key->tags set, and the expiry
	// records, regardless of freshness. The keys are NOT removed from the
	// tag->keys sets they belong to; those stale memberships are filtered
	// by GetByTag and cleared by RemoveByTag or the sweep. Symmetric reverse
	// cleanup here would cost a tag resolution per key on every removal.
	Remove(ctx context.Context, keys ...string) error

	// RemoveByTag removes every entry currently carrying the tag, then drops
	// the tag's own index set.
	RemoveByTag(ctx context.Context, tag string) error

	// RemoveExpiredKeys purges every entry whose logical expiry is at or
	// before now+GracePeriod, through the full removal path. Returns how
	// many keys were purged. Invoked periodically by the sweep driver when
	// SweepInterval is set; safe to call directly as well.
	RemoveExpiredKeys(ctx context.Context) (int, error)

	// Close releases the store session. Sweep drivers started for this
	// store's endpoint stay registered for the life of the process.
	Close(ctx context.Context) error
}

// Options tune the cache. Only Store and Codec are required; others have
// sensible defaults.
type Options[V any] struct {
	// Required
	Store st.Store
	Codec c.Codec[V]

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// OpTimeout bounds each store round-trip; 0 => 100ms. Tag-index update
	// batches are deliberately exempt from this bound. A timed-out call
	// returns ErrTimeout while the store may still apply the operation;
	// treat timeout as inconclusive.
	OpTimeout time.Duration

	// TTLMargin is added on top of the logical expiry when computing the
	// store-enforced TTL, so index cleanup driven by the logical expiry
	// still finds a live entry. 0 => 1m.
	TTLMargin time.Duration

	// GracePeriod widens active-sweep eligibility to now+GracePeriod,
	// compensating for clock skew between writers. 0 => 5m.
	GracePeriod time.Duration

	// SweepInterval starts a shared periodic sweep driver for the store's
	// endpoint. 0 => no active sweep (lazy removal and the store TTL still
	// apply).
	SweepInterval time.Duration

	// Registry keys sweep drivers by store endpoint so caches pointed at the
	// same endpoint share one driver. nil => a process-wide shared registry.
	Registry *SweepRegistry
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}

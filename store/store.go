// Package store defines the key-value store abstraction used by tagcache.
//
// Implementations MUST be byte-for-byte transparent: GetString must return
// exactly the same []byte that was previously passed to SetString for a key
// (no prepended/appended metadata, no re-encoding, no mutation).
//
// Implementations must be safe for concurrent use: the store session is the
// only resource shared between in-flight logical cache operations, and the
// adapter owns that safety, not the components built on top of it.
package store

import (
	"context"
	"errors"
	"time"
)

// Failure taxonomy. Implementations wrap their transport/server errors so the
// caller can errors.Is against these.
var (
	// ErrUnavailable marks connection/transport failures: the store could not
	// be reached or the session is closed.
	ErrUnavailable = errors.New("store unavailable")

	// ErrTimeout marks a bounded wait that elapsed before the operation
	// completed. The operation may still complete on the server; treat a
	// timeout as inconclusive, not as proof the write did not happen.
	ErrTimeout = errors.New("store operation timed out")

	// ErrFailed marks an operation the store received and rejected.
	ErrFailed = errors.New("store operation failed")
)

// Store is the primitive operation surface tagcache requires from the backing
// KV store: strings with TTL, unordered sets, score-ordered sets, and an
// atomic multi-command batch.
//
// Every call blocks until completion or until ctx is done; callers bound the
// wait by attaching a deadline to ctx. Asynchronous use is plain goroutines -
// the semantics are identical either way.
type Store interface {
	// GetString returns (value, true, nil) on hit; (nil, false, nil) on miss.
	GetString(ctx context.Context, key string) ([]byte, bool, error)

	// GetStrings bulk-fetches many keys in one round-trip. Missing keys are
	// simply absent from the result map.
	GetStrings(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetString upserts value with a store-enforced expiry. ttl <= 0 means no
	// expiry.
	SetString(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeleteKeys removes keys; removing an absent key is not an error.
	DeleteKeys(ctx context.Context, keys ...string) error

	// Unordered unique-member set operations.
	SetAdd(ctx context.Context, setKey string, members ...string) error
	SetRemove(ctx context.Context, setKey string, members ...string) error
	SetMembers(ctx context.Context, setKey string) ([]string, error)

	// Score-ordered set operations. RangeByScore bounds are inclusive and
	// results come back in ascending score order.
	SortedSetAdd(ctx context.Context, setKey, member string, score float64) error
	SortedSetRemove(ctx context.Context, setKey string, members ...string) error
	SortedSetRangeByScore(ctx context.Context, setKey string, min, max float64) ([]string, error)

	// Batch runs fn to queue mutations on a Tx, then commits them atomically:
	// either every queued operation applies or none does. Individual operation
	// results are unobservable; only the commit result is returned.
	Batch(ctx context.Context, fn func(Tx) error) error

	// Endpoint identifies the store host this session talks to. Used to key
	// the process-wide sweep-coordinator registry.
	Endpoint() string

	// Close releases resources.
	Close(ctx context.Context) error
}

// Tx queues mutations inside a Batch. Methods do not return results - the
// operations are sent together on commit and only the commit outcome is
// observable through Batch's error.
type Tx interface {
	SetString(key string, value []byte, ttl time.Duration)
	DeleteKeys(keys ...string)
	SetAdd(setKey string, members ...string)
	SetRemove(setKey string, members ...string)
	SortedSetAdd(setKey, member string, score float64)
	SortedSetRemove(setKey string, members ...string)
}

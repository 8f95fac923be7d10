// Package tagcache layers tag-based invalidation and TTL reconciliation on
// top of a Redis-like store. Entries carry a logical expiry and a tag set;
// keys can be fetched singly or in bulk by tag, and a tag can invalidate
// every key carrying it - a capability the store does not provide natively.
//
// Components:
//   - store.Store: string/set/sorted-set primitives plus an atomic batch.
//   - codec.Codec[V]: (de)serializes V <-> []byte inside the entry envelope.
//   - tagindex.Manager: the bidirectional tag->keys / key->tags index.
//   - expiry.Manager: sorted index of logical expiries driving the sweep.
//
// Keys (fixed layout, interoperable across deployed instances):
//
//	cache:<key>                  - entry envelope (expiry + tags + payload)
//	cache:_cacheKeysByTag:<tag>  - set of keys carrying <tag>
//	cache:_cacheTagsByKey:<key>  - set of tags on <key>
//	cache:_cacheKeysByExpiry     - sorted set, score = expiry in unix millis
//
// An entry outlives its logical expiry in the store by a configurable margin
// so the cleanup that follows the logical expiry always has a live entry to
// act on. Reads treat a logically expired entry as a miss and remove it in
// the background; a periodic sweep (one driver per store endpoint, shared
// process-wide) purges what reads never touch.
//
// The entry write and its index updates are separate transactions. A reader
// in between can see an entry without its tags or vice versa; this window is
// part of the design - the store cannot chain dependent reads inside one
// transaction - and reads are expected to filter rather than trust the index
// blindly.
package tagcache

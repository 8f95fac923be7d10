package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"envelope", "value_decode"}
	EntryCorrupt(key, reason string)

	// A read found a logically expired entry; full removal was dispatched
	// in the background.
	LazyRemoval(key string)

	// GetByTag found a tag member whose entry no longer exists
	// (store TTL fired, or the Remove asymmetry left it behind).
	StaleTagMember(tag, key string)

	// The entry write succeeded but a subsequent index update failed,
	// leaving the entry with a stale or missing tag/expiry index.
	IndexUpdateFailed(key string, err error)

	// An active sweep finished. scanned is the number of expiry-index
	// entries eligible, removed how many were actually purged.
	SweepCompleted(endpoint string, scanned, removed int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryCorrupt(string, string)     {}
func (NopHooks) LazyRemoval(string)              {}
func (NopHooks) StaleTagMember(string, string)   {}
func (NopHooks) IndexUpdateFailed(string, error) {}
func (NopHooks) SweepCompleted(string, int, int) {}

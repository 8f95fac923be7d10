package util

// Root is the fixed namespace prefix every tagcache structure lives under.
// The index layouts below are an interoperability contract: any deployed
// instance pointed at the same database must produce identical key names.
const Root = "cache"

// ExpiryIndexKey is the single sorted set ranking entry keys by logical
// expiry, shared by every cache on the same logical database.
const ExpiryIndexKey = Root + ":_cacheKeysByExpiry"

// EntryKey names the serialized entry for a user key.
func EntryKey(key string) string { return Root + ":" + key }

// KeysByTagKey names the tag->keys set for a tag.
func KeysByTagKey(tag string) string { return Root + ":_cacheKeysByTag:" + tag }

// TagsByKeyKey names the key->tags set for a user key.
func TagsByKeyKey(key string) string { return Root + ":_cacheTagsByKey:" + key }

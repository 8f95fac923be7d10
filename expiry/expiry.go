// Package expiry maintains the time-ordered expiry index used for active
// sweeping: a single sorted set mapping entry keys to their logical expiry,
// independent of the store's native per-key TTL.
package expiry

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/store"
)

// Rank encodes a timestamp as a sorted-set score. Unix milliseconds: strictly
// order-preserving with respect to chronological time and exact in a float64
// for any realistic date.
func Rank(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Manager owns the "<root>:_cacheKeysByExpiry" sorted set.
type Manager struct {
	st store.Store
}

func New(st store.Store) *Manager {
	return &Manager{st: st}
}

// SetKeyExpiry records key's logical expiry in the index. A later record for
// the same key supersedes the earlier score.
func (m *Manager) SetKeyExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	return m.st.SortedSetAdd(ctx, util.ExpiryIndexKey, key, Rank(expiresAt))
}

// GetExpiredKeys returns every key whose recorded expiry rank is <= the rank
// of maxDate, ascending, both bounds inclusive.
func (m *Manager) GetExpiredKeys(ctx context.Context, maxDate time.Time) ([]string, error) {
	return m.st.SortedSetRangeByScore(ctx, util.ExpiryIndexKey, 0, Rank(maxDate))
}

// RemoveKeyExpiry drops the index records for keys.
func (m *Manager) RemoveKeyExpiry(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return m.st.SortedSetRemove(ctx, util.ExpiryIndexKey, keys...)
}

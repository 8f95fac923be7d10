// Package tagindex maintains the bidirectional key<->tag index:
// one tag->keys set per tag and one key->tags set per key.
//
// Each mutating method runs as a single atomic store batch, but the forward
// and reverse indices are deliberately updated by separate methods invoked
// back to back by the cache façade. The two batches form one logical unit;
// a reader between them can observe one index updated and the other not.
// That eventual-consistency window is part of the contract (the backing
// store cannot chain dependent reads inside one transaction) and must not
// be collapsed into a single batch.
package tagindex

import (
	"context"

	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/store"
)

// Manager owns the "<root>:_cacheKeysByTag:" and "<root>:_cacheTagsByKey:"
// keyspaces. External code must not write under these prefixes.
type Manager struct {
	st store.Store
}

func New(st store.Store) *Manager {
	return &Manager{st: st}
}

// UpdateTags replaces the key->tags set wholesale: the existing set is
// deleted and newTags (if any) are added, all in one batch. A Set with no
// tags therefore clears prior associations. The reverse index is not touched
// here; callers pair this with AddKeyToTags/RemoveKeyFromTags.
func (m *Manager) UpdateTags(ctx context.Context, key string, newTags []string) error {
	return m.st.Batch(ctx, func(tx store.Tx) error {
		tx.DeleteKeys(util.TagsByKeyKey(key))
		if len(newTags) > 0 {
			tx.SetAdd(util.TagsByKeyKey(key), newTags...)
		}
		return nil
	})
}

// AddKeyToTags adds key to each tag's tag->keys set in one batch.
// No-op success on empty tags or empty key.
func (m *Manager) AddKeyToTags(ctx context.Context, key string, tags []string) error {
	if key == "" || len(tags) == 0 {
		return nil
	}
	return m.st.Batch(ctx, func(tx store.Tx) error {
		for _, tag := range tags {
			tx.SetAdd(util.KeysByTagKey(tag), key)
		}
		return nil
	})
}

// RemoveKeyFromTags removes key from each tag's tag->keys set in one batch.
// No-op success on empty tags.
func (m *Manager) RemoveKeyFromTags(ctx context.Context, key string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return m.st.Batch(ctx, func(tx store.Tx) error {
		for _, tag := range tags {
			tx.SetRemove(util.KeysByTagKey(tag), key)
		}
		return nil
	})
}

// GetKeysForTag returns the members of the tag->keys set; empty when the tag
// has no members.
func (m *Manager) GetKeysForTag(ctx context.Context, tag string) ([]string, error) {
	return m.st.SetMembers(ctx, util.KeysByTagKey(tag))
}

// GetTagsForKey returns the members of the key->tags set.
func (m *Manager) GetTagsForKey(ctx context.Context, key string) ([]string, error) {
	return m.st.SetMembers(ctx, util.TagsByKeyKey(key))
}

// RemoveTagsForKey deletes the key->tags set for each key. Used by the
// direct-remove path, which does not need the prior tags for reverse cleanup.
func (m *Manager) RemoveTagsForKey(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	setKeys := make([]string, len(keys))
	for i, k := range keys {
		setKeys[i] = util.TagsByKeyKey(k)
	}
	return m.st.DeleteKeys(ctx, setKeys...)
}

// DeleteTag drops the tag's entire tag->keys set.
func (m *Manager) DeleteTag(ctx context.Context, tag string) error {
	return m.st.DeleteKeys(ctx, util.KeysByTagKey(tag))
}

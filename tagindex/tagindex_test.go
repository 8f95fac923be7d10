package tagindex

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sr "github.com/unkn0wn-root/tagcache/store/redis"
)

func newTestManager(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st, err := sr.New(sr.Config{Client: client})
	require.NoError(t, err)
	return mr, New(st)
}

func TestKeyNamingContract(t *testing.T) {
	// The index key layout is an interoperability contract with deployed
	// instances; these literals must never drift.
	ctx := context.Background()
	mr, m := newTestManager(t)

	require.NoError(t, m.AddKeyToTags(ctx, "k1", []string{"news"}))
	require.NoError(t, m.UpdateTags(ctx, "k1", []string{"news"}))

	assert.True(t, mr.Exists("cache:_cacheKeysByTag:news"))
	assert.True(t, mr.Exists("cache:_cacheTagsByKey:k1"))
}

func TestUpdateTagsReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	_, m := newTestManager(t)

	require.NoError(t, m.UpdateTags(ctx, "k1", []string{"a", "b"}))
	tags, err := m.GetTagsForKey(ctx, "k1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, tags)

	// Replacement, not merge.
	require.NoError(t, m.UpdateTags(ctx, "k1", []string{"c"}))
	tags, err = m.GetTagsForKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, tags)

	// Empty tag list clears the association entirely.
	require.NoError(t, m.UpdateTags(ctx, "k1", nil))
	tags, err = m.GetTagsForKey(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestAddRemoveKeyAcrossTags(t *testing.T) {
	ctx := context.Background()
	_, m := newTestManager(t)

	require.NoError(t, m.AddKeyToTags(ctx, "k1", []string{"a", "b"}))
	require.NoError(t, m.AddKeyToTags(ctx, "k2", []string{"a"}))

	keys, err := m.GetKeysForTag(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, keys)

	require.NoError(t, m.RemoveKeyFromTags(ctx, "k1", []string{"a", "b"}))
	keys, err = m.GetKeysForTag(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"k2"}, keys)

	keys, err = m.GetKeysForTag(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestEmptyArgsAreNoOpSuccess(t *testing.T) {
	ctx := context.Background()
	mr, m := newTestManager(t)

	require.NoError(t, m.AddKeyToTags(ctx, "k1", nil))
	require.NoError(t, m.AddKeyToTags(ctx, "", []string{"a"}))
	require.NoError(t, m.RemoveKeyFromTags(ctx, "k1", nil))
	require.NoError(t, m.RemoveTagsForKey(ctx))

	assert.Empty(t, mr.Keys())
}

func TestGetKeysForUnknownTag(t *testing.T) {
	ctx := context.Background()
	_, m := newTestManager(t)

	keys, err := m.GetKeysForTag(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRemoveTagsForKeyAndDeleteTag(t *testing.T) {
	ctx := context.Background()
	_, m := newTestManager(t)

	require.NoError(t, m.UpdateTags(ctx, "k1", []string{"a"}))
	require.NoError(t, m.UpdateTags(ctx, "k2", []string{"a"}))
	require.NoError(t, m.AddKeyToTags(ctx, "k1", []string{"a"}))
	require.NoError(t, m.AddKeyToTags(ctx, "k2", []string{"a"}))

	require.NoError(t, m.RemoveTagsForKey(ctx, "k1", "k2"))
	for _, k := range []string{"k1", "k2"} {
		tags, err := m.GetTagsForKey(ctx, k)
		require.NoError(t, err)
		assert.Empty(t, tags)
	}

	// Reverse index untouched by RemoveTagsForKey; DeleteTag drops it whole.
	keys, err := m.GetKeysForTag(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, keys)

	require.NoError(t, m.DeleteTag(ctx, "a"))
	keys, err = m.GetKeysForTag(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache/store"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st, err := New(Config{Client: client})
	require.NoError(t, err)
	return mr, st
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestEndpointDerivedFromClient(t *testing.T) {
	mr, st := newTestStore(t)
	assert.Equal(t, mr.Addr(), st.Endpoint())
}

func TestStringsRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, st := newTestStore(t)

	// Miss on empty store.
	_, ok, err := st.GetString(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetString(ctx, "k", []byte("payload"), time.Minute))
	b, ok, err := st.GetString(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), b)

	// Store-enforced expiry.
	mr.FastForward(2 * time.Minute)
	_, ok, err = st.GetString(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetStringsSkipsMissing(t *testing.T) {
	ctx := context.Background()
	_, st := newTestStore(t)

	require.NoError(t, st.SetString(ctx, "a", []byte("1"), 0))
	require.NoError(t, st.SetString(ctx, "c", []byte("3"), 0))

	got, err := st.GetStrings(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "c": []byte("3")}, got)

	got, err = st.GetStrings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteKeysIdempotent(t *testing.T) {
	ctx := context.Background()
	_, st := newTestStore(t)

	require.NoError(t, st.SetString(ctx, "k", []byte("v"), 0))
	require.NoError(t, st.DeleteKeys(ctx, "k", "never-existed"))
	require.NoError(t, st.DeleteKeys(ctx, "k"))

	_, ok, err := st.GetString(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetOps(t *testing.T) {
	ctx := context.Background()
	_, st := newTestStore(t)

	require.NoError(t, st.SetAdd(ctx, "s", "a", "b"))
	require.NoError(t, st.SetAdd(ctx, "s", "b")) // duplicate is a no-op

	members, err := st.SetMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, st.SetRemove(ctx, "s", "a"))
	members, err = st.SetMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)

	// Absent set reads as empty, not as an error.
	members, err = st.SetMembers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSortedSetRangeInclusive(t *testing.T) {
	ctx := context.Background()
	_, st := newTestStore(t)

	require.NoError(t, st.SortedSetAdd(ctx, "z", "k1", 1000))
	require.NoError(t, st.SortedSetAdd(ctx, "z", "k2", 2000))
	require.NoError(t, st.SortedSetAdd(ctx, "z", "k3", 3000))

	// Upper bound inclusive, ascending order.
	got, err := st.SortedSetRangeByScore(ctx, "z", 0, 2000)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, got)

	require.NoError(t, st.SortedSetRemove(ctx, "z", "k1", "k2"))
	got, err = st.SortedSetRangeByScore(ctx, "z", 0, 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"k3"}, got)
}

func TestBatchAppliesAllOps(t *testing.T) {
	ctx := context.Background()
	_, st := newTestStore(t)

	require.NoError(t, st.SetString(ctx, "gone", []byte("x"), 0))

	err := st.Batch(ctx, func(tx store.Tx) error {
		tx.SetString("k", []byte("v"), time.Minute)
		tx.DeleteKeys("gone")
		tx.SetAdd("s", "m1", "m2")
		tx.SetRemove("s", "m2")
		tx.SortedSetAdd("z", "m1", 42)
		tx.SortedSetRemove("z", "absent")
		return nil
	})
	require.NoError(t, err)

	b, ok, err := st.GetString(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	_, ok, err = st.GetString(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := st.SetMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, members)

	got, err := st.SortedSetRangeByScore(ctx, "z", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, got)
}

func TestBatchFnErrorDiscardsQueue(t *testing.T) {
	ctx := context.Background()
	_, st := newTestStore(t)

	err := st.Batch(ctx, func(tx store.Tx) error {
		tx.SetString("k", []byte("v"), 0)
		return assert.AnError
	})
	// The callback's own error comes back as-is, never dressed up as a
	// store-reported failure.
	require.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, store.ErrFailed)

	_, ok, err := st.GetString(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnavailableClassification(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	st, err := New(Config{Client: client, CloseClient: true})
	require.NoError(t, err)

	require.NoError(t, st.Close(ctx))
	require.NoError(t, st.Close(ctx)) // repeated close is a no-op

	_, _, err = st.GetString(ctx, "k")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestTimeoutClassification(t *testing.T) {
	_, st := newTestStore(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, _, err := st.GetString(ctx, "k")
	assert.ErrorIs(t, err, store.ErrTimeout)
}

// Package redis implements store.Store over a go-redis UniversalClient.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	endpoint    string
	closeClient bool
}

var _ store.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client

	// Endpoint overrides the host identity reported by Endpoint(). When empty
	// it is derived from the client options if possible.
	Endpoint string
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ep := cfg.Endpoint
	if ep == "" {
		if c, ok := cfg.Client.(*goredis.Client); ok {
			ep = c.Options().Addr
		}
	}
	return &Redis{rdb: cfg.Client, endpoint: ep, closeClient: cfg.CloseClient}, nil
}

func (s *Redis) GetString(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, classify("GET", err)
	}
	return b, true, nil
}

func (s *Redis) GetStrings(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify("MGET", err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			// miss; leave absent
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		default:
			out[keys[i]] = []byte(fmt.Sprint(vv))
		}
	}
	return out, nil
}

func (s *Redis) SetString(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // non-positive TTL means no expiry
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify("SET", err)
	}
	return nil
}

func (s *Redis) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return classify("DEL", err)
	}
	return nil
}

func (s *Redis) SetAdd(ctx context.Context, setKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.rdb.SAdd(ctx, setKey, toAny(members)...).Err(); err != nil {
		return classify("SADD", err)
	}
	return nil
}

func (s *Redis) SetRemove(ctx context.Context, setKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.rdb.SRem(ctx, setKey, toAny(members)...).Err(); err != nil {
		return classify("SREM", err)
	}
	return nil
}

func (s *Redis) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, classify("SMEMBERS", err)
	}
	return members, nil
}

func (s *Redis) SortedSetAdd(ctx context.Context, setKey, member string, score float64) error {
	if err := s.rdb.ZAdd(ctx, setKey, goredis.Z{Score: score, Member: member}).Err(); err != nil {
		return classify("ZADD", err)
	}
	return nil
}

func (s *Redis) SortedSetRemove(ctx context.Context, setKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.rdb.ZRem(ctx, setKey, toAny(members)...).Err(); err != nil {
		return classify("ZREM", err)
	}
	return nil
}

func (s *Redis) SortedSetRangeByScore(ctx context.Context, setKey string, min, max float64) ([]string, error) {
	members, err := s.rdb.ZRangeByScore(ctx, setKey, &goredis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, classify("ZRANGEBYSCORE", err)
	}
	return members, nil
}

// Batch queues fn's mutations into a MULTI/EXEC transaction. Commands are not
// awaited individually; only the EXEC result is checked. An error from fn
// itself discards the queue and is returned as-is; classification applies only
// to failures the store reported.
func (s *Redis) Batch(ctx context.Context, fn func(store.Tx) error) error {
	var fnErr error
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		fnErr = fn(&tx{ctx: ctx, pipe: p})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return classify("MULTI", err)
	}
	return nil
}

func (s *Redis) Endpoint() string { return s.endpoint }

// Close releases the underlying client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

type tx struct {
	ctx  context.Context
	pipe goredis.Pipeliner
}

var _ store.Tx = (*tx)(nil)

func (t *tx) SetString(key string, value []byte, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	t.pipe.Set(t.ctx, key, value, ttl)
}

func (t *tx) DeleteKeys(keys ...string) {
	if len(keys) == 0 {
		return
	}
	t.pipe.Del(t.ctx, keys...)
}

func (t *tx) SetAdd(setKey string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.pipe.SAdd(t.ctx, setKey, toAny(members)...)
}

func (t *tx) SetRemove(setKey string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.pipe.SRem(t.ctx, setKey, toAny(members)...)
}

func (t *tx) SortedSetAdd(setKey, member string, score float64) {
	t.pipe.ZAdd(t.ctx, setKey, goredis.Z{Score: score, Member: member})
}

func (t *tx) SortedSetRemove(setKey string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.pipe.ZRem(t.ctx, setKey, toAny(members)...)
}

// classify maps a go-redis error into the store failure taxonomy. Deadline
// errors become ErrTimeout, transport-level errors ErrUnavailable, everything
// the server itself rejected ErrFailed.
func classify(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("redis %s: %w", op, store.ErrTimeout)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("redis %s: %w: %v", op, store.ErrTimeout, err)
	case errors.As(err, &netErr),
		errors.Is(err, goredis.ErrClosed),
		errors.Is(err, goredis.ErrPoolTimeout):
		return fmt.Errorf("redis %s: %w: %v", op, store.ErrUnavailable, err)
	default:
		return fmt.Errorf("redis %s: %w: %v", op, store.ErrFailed, err)
	}
}

func formatScore(f float64) string {
	return fmt.Sprintf("%f", f)
}

func toAny(members []string) []any {
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

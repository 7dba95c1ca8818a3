// Package redis adapts a go-redis client to txcache.Backend.
//
// Redis has no per-key CAS token, so the adapter keeps a sidecar version
// counter per key ("ver:<ns>:<key>") that every write bumps. Tokens are the
// counter value; CompareAndSwap is WATCH on the version key followed by a
// MULTI/EXEC write, Redis's network-level optimistic-concurrency primitive.
// Deleting a key bumps the version rather than clearing it, so a token from
// before the delete can never match a later write.
//
// Version keys carry no TTL: a counter that expired and restarted from zero
// could hand out a token that aliases one issued before the reset, which
// would let a stale CompareAndSwap through. The cost is one small counter
// per key ever written in the namespace, persisting until FLUSHDB. Workloads
// with unbounded expiring key spaces should budget for that or reap ver:
// keys out of band once the matching value is long gone.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/txcache"
)

var ErrNilClient = errors.New("redis backend: nil client")

// errStale aborts a Watch callback when the observed token is already behind.
var errStale = errors.New("redis backend: stale token")

type Backend struct {
	rdb         goredis.UniversalClient
	ns          string
	closeClient bool
}

var _ txcache.Backend = (*Backend)(nil)

type Config struct {
	Client      goredis.UniversalClient
	Namespace   string // logical namespace to avoid collisions; e.g. "session"
	CloseClient bool   // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Backend{rdb: cfg.Client, ns: cfg.Namespace, closeClient: cfg.CloseClient}, nil
}

func (b *Backend) key(k string) string    { return "val:" + b.ns + ":" + k }
func (b *Backend) verKey(k string) string { return "ver:" + b.ns + ":" + k }

// scripts keep value+version updates atomic without a WATCH round trip.
var (
	// KEYS: val, ver; ARGV: value, ttl_ms
	addScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('INCR', KEYS[2])
return 1`)

	// KEYS: val, ver; ARGV: value, ttl_ms
	replaceScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('INCR', KEYS[2])
return 1`)

	// KEYS: val, ver; ARGV: delta, initial, ttl_ms
	// Missing key takes initial; non-numeric current value rejects; clamps at 0.
	deltaScript = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
local n
if cur then
  n = tonumber(cur)
  if n == nil then return {0, 0} end
  n = n + tonumber(ARGV[1])
else
  n = tonumber(ARGV[2])
end
if n < 0 then n = 0 end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], n, 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], n)
end
redis.call('INCR', KEYS[2])
return {1, n}`)
)

func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0 // non-positive TTLs mean "no expiry" per backend contract
	}
	return ttl.Milliseconds()
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, txcache.Token, bool, error) {
	// one MGET so value and version come from the same snapshot
	vals, err := b.rdb.MGet(ctx, b.key(key), b.verKey(key)).Result()
	if err != nil {
		return nil, 0, false, err
	}
	raw, ok := asBytes(vals[0])
	if !ok {
		return nil, 0, false, nil
	}
	return raw, txcache.Token(asUint(vals[1])), true, nil
}

func (b *Backend) GetMulti(ctx context.Context, keys []string) (map[string]txcache.Item, error) {
	if len(keys) == 0 {
		return map[string]txcache.Item{}, nil
	}
	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, b.key(k))
	}
	for _, k := range keys {
		args = append(args, b.verKey(k))
	}
	vals, err := b.rdb.MGet(ctx, args...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]txcache.Item, len(keys))
	for i, k := range keys {
		raw, ok := asBytes(vals[i])
		if !ok {
			continue
		}
		out[k] = txcache.Item{Value: raw, Token: txcache.Token(asUint(vals[len(keys)+i]))}
	}
	return out, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	_, err := b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, b.key(key), value, ttl)
		p.Incr(ctx, b.verKey(key))
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) (map[string]bool, error) {
	if len(items) == 0 {
		return map[string]bool{}, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	_, err := b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for k, v := range items {
			p.Set(ctx, b.key(k), v, ttl)
			p.Incr(ctx, b.verKey(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := make(map[string]bool, len(items))
	for k := range items {
		res[k] = true
	}
	return res, nil
}

func (b *Backend) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	n, err := addScript.Run(ctx, b.rdb,
		[]string{b.key(key), b.verKey(key)}, value, ttlMillis(ttl)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *Backend) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	n, err := replaceScript.Run(ctx, b.rdb,
		[]string{b.key(key), b.verKey(key)}, value, ttlMillis(ttl)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *Backend) CompareAndSwap(ctx context.Context, token txcache.Token, key string, value []byte, ttl time.Duration) (bool, error) {
	vk := b.verKey(key)
	err := b.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, vk).Uint64()
		if err == goredis.Nil {
			cur = 0
		} else if err != nil {
			return err
		}
		if txcache.Token(cur) != token {
			return errStale
		}
		if ttl < 0 {
			ttl = 0
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, b.key(key), value, ttl)
			p.Incr(ctx, vk)
			return nil
		})
		return err
	}, vk)
	if errors.Is(err, errStale) || errors.Is(err, goredis.TxFailedErr) {
		return false, nil // raced by another writer
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	var del *goredis.IntCmd
	_, err := b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, b.key(key))
		p.Incr(ctx, b.verKey(key))
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (b *Backend) DeleteMulti(ctx context.Context, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}
	dels := make([]*goredis.IntCmd, len(keys))
	_, err := b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for i, k := range keys {
			dels[i] = p.Del(ctx, b.key(k))
			p.Incr(ctx, b.verKey(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := make(map[string]bool, len(keys))
	for i, k := range keys {
		res[k] = dels[i].Val() > 0
	}
	return res, nil
}

func (b *Backend) Increment(ctx context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	return b.delta(ctx, key, offset, offset, initial, ttl)
}

func (b *Backend) Decrement(ctx context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	return b.delta(ctx, key, offset, -offset, initial, ttl)
}

func (b *Backend) delta(ctx context.Context, key string, offset, delta, initial int64, ttl time.Duration) (int64, bool, error) {
	if offset <= 0 || initial < 0 {
		return 0, false, nil
	}
	vals, err := deltaScript.Run(ctx, b.rdb,
		[]string{b.key(key), b.verKey(key)}, delta, initial, ttlMillis(ttl)).Slice()
	if err != nil {
		return 0, false, err
	}
	if len(vals) != 2 || asInt(vals[0]) != 1 {
		return 0, false, nil // non-numeric current value
	}
	return asInt(vals[1]), true, nil
}

func (b *Backend) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl > 0 {
		return b.rdb.PExpire(ctx, b.key(key), ttl).Result()
	}
	n, err := b.rdb.Exists(ctx, b.key(key)).Result()
	if err != nil || n == 0 {
		return false, err
	}
	return true, b.rdb.Persist(ctx, b.key(key)).Err()
}

// Flush clears the entire logical database, version keys included.
// Use a dedicated DB index per namespace when sharing a server.
func (b *Backend) Flush(ctx context.Context) (bool, error) {
	if err := b.rdb.FlushDB(ctx).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the underlying client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Backend) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func asBytes(v any) ([]byte, bool) {
	switch vv := v.(type) {
	case nil:
		return nil, false
	case string:
		return []byte(vv), true
	case []byte:
		return vv, true
	default:
		return nil, false
	}
}

// missing version keys read as 0, matching a never-written key
func asUint(v any) uint64 {
	raw, ok := asBytes(v)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func asInt(v any) int64 {
	switch vv := v.(type) {
	case int64:
		return vv
	case string:
		n, _ := strconv.ParseInt(vv, 10, 64)
		return n
	default:
		return 0
	}
}

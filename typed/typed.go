// Package typed wraps any txcache.Store behind a generically typed API.
// The wrapped store may be a transaction or a bare backend; the wrapper adds
// only (de)serialization through a codec.Codec and forwards tokens untouched.
package typed

import (
	"context"
	"time"

	"github.com/unkn0wn-root/txcache"
	"github.com/unkn0wn-root/txcache/codec"
)

// Item is a decoded value/token pair returned by GetMulti.
type Item[V any] struct {
	Value V
	Token txcache.Token
}

// Store is a typed view over an untyped Store. The zero value is not usable;
// construct with Wrap.
type Store[V any] struct {
	s txcache.Store
	c codec.Codec[V]
}

func Wrap[V any](s txcache.Store, c codec.Codec[V]) Store[V] {
	return Store[V]{s: s, c: c}
}

// Unwrap exposes the underlying untyped store, e.g. to reach numeric
// operations or a Tx's Commit.
func (t Store[V]) Unwrap() txcache.Store { return t.s }

func (t Store[V]) Get(ctx context.Context, key string) (V, txcache.Token, bool, error) {
	var zero V
	raw, tok, ok, err := t.s.Get(ctx, key)
	if err != nil || !ok {
		return zero, 0, false, err
	}
	v, err := t.c.Decode(raw)
	if err != nil {
		return zero, 0, false, err
	}
	return v, tok, true, nil
}

func (t Store[V]) GetMulti(ctx context.Context, keys []string) (map[string]Item[V], error) {
	got, err := t.s.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Item[V], len(got))
	for k, it := range got {
		v, err := t.c.Decode(it.Value)
		if err != nil {
			return nil, err
		}
		out[k] = Item[V]{Value: v, Token: it.Token}
	}
	return out, nil
}

func (t Store[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) (bool, error) {
	raw, err := t.c.Encode(v)
	if err != nil {
		return false, err
	}
	return t.s.Set(ctx, key, raw, ttl)
}

func (t Store[V]) SetMulti(ctx context.Context, items map[string]V, ttl time.Duration) (map[string]bool, error) {
	raw := make(map[string][]byte, len(items))
	for k, v := range items {
		b, err := t.c.Encode(v)
		if err != nil {
			return nil, err
		}
		raw[k] = b
	}
	return t.s.SetMulti(ctx, raw, ttl)
}

func (t Store[V]) Add(ctx context.Context, key string, v V, ttl time.Duration) (bool, error) {
	raw, err := t.c.Encode(v)
	if err != nil {
		return false, err
	}
	return t.s.Add(ctx, key, raw, ttl)
}

func (t Store[V]) Replace(ctx context.Context, key string, v V, ttl time.Duration) (bool, error) {
	raw, err := t.c.Encode(v)
	if err != nil {
		return false, err
	}
	return t.s.Replace(ctx, key, raw, ttl)
}

func (t Store[V]) CompareAndSwap(ctx context.Context, token txcache.Token, key string, v V, ttl time.Duration) (bool, error) {
	raw, err := t.c.Encode(v)
	if err != nil {
		return false, err
	}
	return t.s.CompareAndSwap(ctx, token, key, raw, ttl)
}

func (t Store[V]) Delete(ctx context.Context, key string) (bool, error) {
	return t.s.Delete(ctx, key)
}

func (t Store[V]) DeleteMulti(ctx context.Context, keys []string) (map[string]bool, error) {
	return t.s.DeleteMulti(ctx, keys)
}

func (t Store[V]) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.s.Touch(ctx, key, ttl)
}

func (t Store[V]) Flush(ctx context.Context) (bool, error) {
	return t.s.Flush(ctx)
}

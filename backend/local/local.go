// Package local provides an in-process reference Backend: a mutex-guarded map
// with per-key version counters as CAS tokens and TTL enforced on read.
// Useful for tests and single-process deployments.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/txcache"
	"github.com/unkn0wn-root/txcache/internal/util"
)

type entry struct {
	value   []byte
	version uint64
	// zero => no expiry
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Backend is an in-memory txcache.Backend. Safe for concurrent use.
type Backend struct {
	mu   sync.Mutex
	m    map[string]entry
	next uint64 // version source; monotonic across deletes, so tokens never recycle
}

var _ txcache.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{m: make(map[string]entry)}
}

// lookup returns the live entry for key, reaping it if expired.
// Caller holds b.mu.
func (b *Backend) lookup(key string) (entry, bool) {
	e, ok := b.m[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(b.m, key)
		return entry{}, false
	}
	return e, true
}

// store writes value under key with a fresh version. Caller holds b.mu.
func (b *Backend) store(key string, value []byte, ttl time.Duration) entry {
	b.next++
	e := entry{value: append([]byte(nil), value...), version: b.next}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	b.m[key] = e
	return e
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, txcache.Token, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.lookup(key)
	if !ok {
		return nil, 0, false, nil
	}
	return append([]byte(nil), e.value...), txcache.Token(e.version), true, nil
}

func (b *Backend) GetMulti(_ context.Context, keys []string) (map[string]txcache.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]txcache.Item, len(keys))
	for _, k := range keys {
		if e, ok := b.lookup(k); ok {
			out[k] = txcache.Item{
				Value: append([]byte(nil), e.value...),
				Token: txcache.Token(e.version),
			}
		}
	}
	return out, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	b.store(key, value, ttl)
	b.mu.Unlock()
	return true, nil
}

func (b *Backend) SetMulti(_ context.Context, items map[string][]byte, ttl time.Duration) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make(map[string]bool, len(items))
	for k, v := range items {
		b.store(k, v, ttl)
		res[k] = true
	}
	return res, nil
}

func (b *Backend) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.lookup(key); ok {
		return false, nil
	}
	b.store(key, value, ttl)
	return true, nil
}

func (b *Backend) Replace(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.lookup(key); !ok {
		return false, nil
	}
	b.store(key, value, ttl)
	return true, nil
}

func (b *Backend) CompareAndSwap(_ context.Context, token txcache.Token, key string, value []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.lookup(key)
	if !ok || txcache.Token(e.version) != token {
		return false, nil
	}
	b.store(key, value, ttl)
	return true, nil
}

func (b *Backend) Delete(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.lookup(key)
	delete(b.m, key)
	return ok, nil
}

func (b *Backend) DeleteMulti(_ context.Context, keys []string) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make(map[string]bool, len(keys))
	for _, k := range keys {
		_, ok := b.lookup(k)
		delete(b.m, k)
		res[k] = ok
	}
	return res, nil
}

func (b *Backend) Increment(_ context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	return b.numeric(key, offset, offset, initial, ttl)
}

func (b *Backend) Decrement(_ context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	return b.numeric(key, offset, -offset, initial, ttl)
}

func (b *Backend) numeric(key string, offset, delta, initial int64, ttl time.Duration) (int64, bool, error) {
	if offset <= 0 || initial < 0 {
		return 0, false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	if e, ok := b.lookup(key); ok {
		cur, err := util.ParseDecimal(e.value)
		if err != nil {
			return 0, false, nil
		}
		n = util.ApplyDelta(cur, delta)
	} else {
		// missing key takes initial, memcached binary-protocol style
		n = initial
	}
	b.store(key, util.FormatDecimal(n), ttl)
	return n, true, nil
}

func (b *Backend) Touch(_ context.Context, key string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.lookup(key)
	if !ok {
		return false, nil
	}
	// expiry only; value and version stay
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	b.m[key] = e
	return true, nil
}

func (b *Backend) Flush(_ context.Context) (bool, error) {
	b.mu.Lock()
	b.m = make(map[string]entry)
	b.mu.Unlock()
	return true, nil
}

func (b *Backend) Close(context.Context) error { return nil }

// Len reports live entries; expired-but-unreaped keys are counted.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}

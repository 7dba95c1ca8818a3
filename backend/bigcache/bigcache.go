// Package bigcache adapts allegro/bigcache to txcache.Backend.
//
// BigCache stores plain bytes with a single global life window: it has no
// per-entry TTL, no versions and no atomic read-modify-write. The adapter
// frames every value with internal/wire to carry a CAS token and serializes
// RMW operations behind one mutex, which is acceptable for an embedded,
// single-process backend.
package bigcache

import (
	"context"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/txcache"
	"github.com/unkn0wn-root/txcache/internal/util"
	"github.com/unkn0wn-root/txcache/internal/wire"
)

type Backend struct {
	mu   sync.Mutex
	c    *bc.BigCache
	next uint64
}

var _ txcache.Backend = (*Backend)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Backend, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

// get reads and unframes an entry; corrupt entries self-heal by deletion.
// Caller holds b.mu.
func (b *Backend) get(key string) ([]byte, uint64, bool, error) {
	raw, err := b.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	cas, payload, derr := wire.Decode(raw)
	if derr != nil {
		_ = b.c.Delete(key)
		return nil, 0, false, nil
	}
	return payload, cas, true, nil
}

// put frames value with a fresh version. Caller holds b.mu.
// Per-entry TTL is not supported by BigCache; the global life window applies.
func (b *Backend) put(key string, value []byte) (uint64, error) {
	b.next++
	return b.next, b.c.Set(key, wire.Encode(b.next, value))
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, txcache.Token, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, cas, ok, err := b.get(key)
	return v, txcache.Token(cas), ok, err
}

func (b *Backend) GetMulti(_ context.Context, keys []string) (map[string]txcache.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]txcache.Item, len(keys))
	for _, k := range keys {
		v, cas, ok, err := b.get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = txcache.Item{Value: v, Token: txcache.Token(cas)}
		}
	}
	return out, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.put(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) SetMulti(_ context.Context, items map[string][]byte, _ time.Duration) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make(map[string]bool, len(items))
	for k, v := range items {
		if _, err := b.put(k, v); err != nil {
			return nil, err
		}
		res[k] = true
	}
	return res, nil
}

func (b *Backend) Add(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, _, ok, err := b.get(key); err != nil || ok {
		return false, err
	}
	if _, err := b.put(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Replace(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, _, ok, err := b.get(key); err != nil || !ok {
		return false, err
	}
	if _, err := b.put(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) CompareAndSwap(_ context.Context, token txcache.Token, key string, value []byte, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, cas, ok, err := b.get(key)
	if err != nil || !ok || txcache.Token(cas) != token {
		return false, err
	}
	if _, err := b.put(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Delete(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _, ok, err := b.get(key)
	if err != nil {
		return false, err
	}
	if ok {
		_ = b.c.Delete(key)
	}
	return ok, nil
}

func (b *Backend) DeleteMulti(_ context.Context, keys []string) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := make(map[string]bool, len(keys))
	for _, k := range keys {
		_, _, ok, err := b.get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			_ = b.c.Delete(k)
		}
		res[k] = ok
	}
	return res, nil
}

func (b *Backend) Increment(_ context.Context, key string, offset, initial int64, _ time.Duration) (int64, bool, error) {
	return b.delta(key, offset, offset, initial)
}

func (b *Backend) Decrement(_ context.Context, key string, offset, initial int64, _ time.Duration) (int64, bool, error) {
	return b.delta(key, offset, -offset, initial)
}

func (b *Backend) delta(key string, offset, delta, initial int64) (int64, bool, error) {
	if offset <= 0 || initial < 0 {
		return 0, false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	cur, _, ok, err := b.get(key)
	if err != nil {
		return 0, false, err
	}
	if ok {
		base, perr := util.ParseDecimal(cur)
		if perr != nil {
			return 0, false, nil
		}
		n = util.ApplyDelta(base, delta)
	} else {
		n = initial
	}
	if _, err := b.put(key, util.FormatDecimal(n)); err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Touch only reports existence: per-entry expiry cannot be expressed, the
// global life window governs eviction.
func (b *Backend) Touch(_ context.Context, key string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _, ok, err := b.get(key)
	return ok, err
}

func (b *Backend) Flush(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.c.Reset(); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Close(_ context.Context) error {
	return b.c.Close()
}

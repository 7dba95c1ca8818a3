// Package buffer provides the in-process store a transaction writes through.
//
// Presence is three-valued: a key is Unknown (the buffer has no opinion and
// the backend may be consulted), Present (this transaction wrote it), or
// Tombstoned (this transaction deleted it; the backend must NOT be consulted,
// or a committed delete could appear to resurrect a value). Entries are never
// evicted; unbounded growth within one transaction's lifetime is the cost of
// correctness.
package buffer

import (
	"sync"
	"time"
)

// State is a key's presence in the buffer.
type State uint8

const (
	Unknown State = iota
	Present
	Tombstoned
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Tombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

type entry struct {
	state State
	value []byte
	// expiresAt is recorded for introspection only. The buffer never
	// enforces expiry: a buffered value outliving its TTL within a single
	// transaction is acceptable, the backend owns real expiry.
	expiresAt time.Time
}

// Buffer is a never-evicting key/value store with explicit tombstones.
type Buffer struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Buffer {
	return &Buffer{entries: make(map[string]entry)}
}

// Get returns the buffered value and the key's presence state. The returned
// slice is the stored copy; callers must not mutate it.
func (b *Buffer) Get(key string) ([]byte, State) {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, Unknown
	}
	return e.value, e.state
}

// Set stores a private copy of value under key, replacing any tombstone.
// Always succeeds for the in-memory buffer; the bool return mirrors the
// store capability contract.
func (b *Buffer) Set(key string, value []byte, ttl time.Duration) bool {
	e := entry{state: Present, value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	b.mu.Lock()
	b.entries[key] = e
	b.mu.Unlock()
	return true
}

// Tombstone marks key as deleted-but-not-yet-committed. The entry is kept,
// not removed: "known gone" must stay distinguishable from "never known".
func (b *Buffer) Tombstone(key string) {
	b.mu.Lock()
	b.entries[key] = entry{state: Tombstoned}
	b.mu.Unlock()
}

// IsTombstoned reports whether key was deleted within the current transaction.
func (b *Buffer) IsTombstoned(key string) bool {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	return ok && e.state == Tombstoned
}

// Flush drops every entry, tombstones included.
func (b *Buffer) Flush() {
	b.mu.Lock()
	b.entries = make(map[string]entry)
	b.mu.Unlock()
}

// Len returns the number of keys the buffer has an opinion about.
func (b *Buffer) Len() int {
	b.mu.RLock()
	n := len(b.entries)
	b.mu.RUnlock()
	return n
}

package txcache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/txcache/buffer"
	"github.com/unkn0wn-root/txcache/internal/util"
)

// Tx buffers a sequence of reads and writes so they behave as if already
// applied, while the backend is touched once, at Commit. Single-owner; see
// the package doc for the concurrency contract.
type Tx struct {
	backend      Backend
	buf          *buffer.Buffer
	log          Logger
	hooks        Hooks
	defaultTTL   time.Duration
	closeBackend bool

	id        string // per-generation, for log/hook correlation only
	nextToken uint64 // monotonic across generations: tokens never repeat per Tx
	tokens    map[Token]snapshot
	deferred  []action

	// commit-attempt scratch: keys written to the backend so far, in replay
	// order, deduplicated. Drives rollback invalidation.
	touched    []string
	touchedSet map[string]struct{}

	// suspendReads blocks backend fallthrough after an uncommitted Flush.
	suspendReads bool
}

var _ Store = (*Tx)(nil)

func newTx(opts Options) (*Tx, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("txcache: backend is required")
	}
	t := &Tx{
		backend:      opts.Backend,
		defaultTTL:   opts.DefaultTTL,
		closeBackend: opts.CloseBackend,
		tokens:       make(map[Token]snapshot),
		touchedSet:   make(map[string]struct{}),
		id:           uuid.NewString(),
	}
	t.buf = opts.Buffer
	if t.buf == nil {
		t.buf = buffer.New()
	}
	t.log = coalesce[Logger](opts.Logger, NopLogger{})
	t.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	return t, nil
}

// ID identifies the current transaction generation in logs and hooks.
func (t *Tx) ID() string { return t.id }

// Pending returns the number of deferred backend writes.
func (t *Tx) Pending() int { return len(t.deferred) }

func (t *Tx) ttl(d time.Duration) time.Duration {
	if d == 0 {
		return t.defaultTTL
	}
	return d
}

// mint issues a fresh token bound to a by-value snapshot of v.
func (t *Tx) mint(v []byte) Token {
	t.nextToken++
	tok := Token(t.nextToken)
	t.tokens[tok] = snapshotOf(v)
	return tok
}

func (t *Tx) enqueue(a action) {
	t.deferred = append(t.deferred, a)
}

// Get returns the value visible to this transaction and a transaction-local
// CAS token. The buffer is authoritative for any key it has an opinion about;
// the backend is consulted only for unknown keys while no flush is pending.
func (t *Tx) Get(ctx context.Context, key string) ([]byte, Token, bool, error) {
	if v, state := t.buf.Get(key); state == buffer.Present {
		// private copy: the caller must not be able to scribble on what
		// later reads in this transaction will see
		return append([]byte(nil), v...), t.mint(v), true, nil
	} else if state == buffer.Tombstoned {
		// A pending delete must never resurrect the backend's value.
		return nil, 0, false, nil
	}
	if t.suspendReads {
		t.hooks.SuspendedReadMiss(t.id, key)
		return nil, 0, false, nil
	}
	v, _, ok, err := t.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	return v, t.mint(v), true, nil
}

// GetMulti batches Get: buffer-resident keys are answered locally, the rest
// go to the backend in one call. One fresh token is minted per returned key;
// backend tokens are discarded, never forwarded.
func (t *Tx) GetMulti(ctx context.Context, keys []string) (map[string]Item, error) {
	out := make(map[string]Item, len(keys))
	var remote []string
	for _, k := range keys {
		v, state := t.buf.Get(k)
		switch state {
		case buffer.Present:
			out[k] = Item{Value: append([]byte(nil), v...), Token: t.mint(v)}
		case buffer.Unknown:
			if t.suspendReads {
				t.hooks.SuspendedReadMiss(t.id, k)
				continue
			}
			remote = append(remote, k)
		}
	}
	if len(remote) == 0 {
		return out, nil
	}
	got, err := t.backend.GetMulti(ctx, remote)
	if err != nil {
		return nil, err
	}
	for k, it := range got {
		out[k] = Item{Value: it.Value, Token: t.mint(it.Value)}
	}
	return out, nil
}

// Set writes to the buffer and defers the real write. Visible to every later
// read in this transaction; the backend sees it at Commit.
func (t *Tx) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ttl = t.ttl(ttl)
	if !t.buf.Set(key, value, ttl) {
		return false, nil
	}
	t.enqueue(action{
		kind:  actionSet,
		keys:  []string{key},
		value: append([]byte(nil), value...),
		ttl:   ttl,
	})
	return true, nil
}

// SetMulti batches Set. The returned map reflects buffer outcomes only:
// backend outcomes surface at Commit, as rollback.
func (t *Tx) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) (map[string]bool, error) {
	ttl = t.ttl(ttl)
	res := make(map[string]bool, len(items))
	accepted := make(map[string][]byte, len(items))
	keys := make([]string, 0, len(items))
	for k, v := range items {
		ok := t.buf.Set(k, v, ttl)
		res[k] = ok
		if ok {
			accepted[k] = append([]byte(nil), v...)
			keys = append(keys, k)
		}
	}
	if len(accepted) > 0 {
		sort.Strings(keys) // deterministic replay and log order
		t.enqueue(action{kind: actionSetMulti, keys: keys, items: accepted, ttl: ttl})
	}
	return res, nil
}

// Add stores key only if this transaction cannot see a value for it.
func (t *Tx) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	_, _, ok, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	return t.Set(ctx, key, value, ttl)
}

// Replace stores key only if this transaction can see a value for it.
func (t *Tx) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	_, _, ok, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return t.Set(ctx, key, value, ttl)
}

// CompareAndSwap validates token against the transaction's current view of
// key, then behaves like Set with an extra commit-time guard: the real swap
// only applies if the backend still holds what the issuing read observed.
func (t *Tx) CompareAndSwap(ctx context.Context, token Token, key string, value []byte, ttl time.Duration) (bool, error) {
	snap, ok := t.tokens[token]
	if !ok {
		return false, nil
	}
	cur, _, found, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found || !snap.equal(cur) {
		// value changed within this transaction's view since the token
		return false, nil
	}
	ttl = t.ttl(ttl)
	if !t.buf.Set(key, value, ttl) {
		return false, nil
	}
	t.enqueue(action{
		kind:  actionCAS,
		keys:  []string{key},
		value: append([]byte(nil), value...),
		ttl:   ttl,
		snap:  snap,
	})
	return true, nil
}

// Delete reports whether the key existed in this transaction's view and, if
// so, tombstones it locally and defers the backend delete.
func (t *Tx) Delete(ctx context.Context, key string) (bool, error) {
	_, _, ok, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	t.buf.Tombstone(key)
	t.enqueue(action{kind: actionDelete, keys: []string{key}})
	return true, nil
}

// DeleteMulti batches Delete, resolving existence with one GetMulti.
func (t *Tx) DeleteMulti(ctx context.Context, keys []string) (map[string]bool, error) {
	got, err := t.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	res := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := got[k]; !ok {
			res[k] = false
			continue
		}
		t.buf.Tombstone(k)
		t.enqueue(action{kind: actionDelete, keys: []string{k}})
		res[k] = true
	}
	return res, nil
}

// Increment adds offset to the numeric value at key, seeding a missing key so
// the result equals initial. The returned value is the post-increment buffer
// value, not a backend-confirmed one.
func (t *Tx) Increment(ctx context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	return t.numeric(ctx, actionIncr, key, offset, initial, ttl)
}

// Decrement is the mirror of Increment, clamping at zero.
func (t *Tx) Decrement(ctx context.Context, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	return t.numeric(ctx, actionDecr, key, offset, initial, ttl)
}

func (t *Tx) numeric(ctx context.Context, kind actionKind, key string, offset, initial int64, ttl time.Duration) (int64, bool, error) {
	if offset <= 0 || initial < 0 {
		return 0, false, nil
	}
	ttl = t.ttl(ttl)
	cur, _, ok, err := t.Get(ctx, key)
	if err != nil {
		return 0, false, err
	}
	var base int64
	if ok {
		if base, err = util.ParseDecimal(cur); err != nil {
			return 0, false, nil
		}
	} else if kind == actionIncr {
		// synthesize a baseline so applying the offset yields initial
		base = initial - offset
	} else {
		base = initial + offset
	}
	delta := offset
	if kind == actionDecr {
		delta = -offset
	}
	n := util.ApplyDelta(base, delta)
	if !t.buf.Set(key, util.FormatDecimal(n), ttl) {
		return 0, false, nil
	}
	t.enqueue(action{kind: kind, keys: []string{key}, offset: offset, initial: initial, ttl: ttl})
	return n, true, nil
}

// Touch rewrites the visible value with a new expiration and defers the real
// touch. Fails if the key is not visible.
func (t *Tx) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	v, _, ok, err := t.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	ttl = t.ttl(ttl)
	if !t.buf.Set(key, v, ttl) {
		return false, nil
	}
	t.enqueue(action{kind: actionTouch, keys: []string{key}, ttl: ttl})
	return true, nil
}

// Flush wipes the transaction's pending work and buffer, defers a single
// backend flush, and suspends backend reads: with everything about to be
// wiped, a stale backend value must not leak through before Commit.
func (t *Tx) Flush(ctx context.Context) (bool, error) {
	t.deferred = t.deferred[:0]
	clear(t.tokens)
	t.buf.Flush()
	t.suspendReads = true
	t.enqueue(action{kind: actionFlush})
	return true, nil
}

// Commit replays the deferred log against the backend in append order. The
// first rejected or failing action truncates the replay, rolls the attempt
// back (invalidating every key written so far, the failing action's included)
// and returns a *CommitError. On success all transaction state is reset.
func (t *Tx) Commit(ctx context.Context) error {
	n := len(t.deferred)
	for i, a := range t.deferred {
		// record targets before evaluating, so the failing action's keys
		// are eligible for invalidation too
		t.markTouched(a.keys)
		ok, err := t.replay(ctx, a)
		if ok && err == nil {
			continue
		}
		cerr := &CommitError{Op: a.kind.String(), Keys: a.keys, Index: i, Err: err}
		t.log.Error("commit aborted; rolling back", Fields{
			"tx": t.id, "action": a.kind.String(), "index": i, "keys": a.keys, "err": err,
		})
		t.hooks.ReplayFailed(t.id, a.kind.String(), a.keys, err)
		t.Rollback(ctx)
		return cerr
	}
	t.reset()
	if n > 0 {
		t.log.Debug("commit applied", Fields{"tx": t.id, "actions": n})
	}
	t.hooks.CommitApplied(t.id, n)
	return nil
}

// Rollback deletes every key the current commit attempt wrote to the backend
// and resets all transaction state. Best-effort: failures of the compensating
// deletes are reported through hooks and logs but never escalated, so
// rollback always completes.
func (t *Tx) Rollback(ctx context.Context) {
	for _, k := range t.touched {
		if _, err := t.backend.Delete(ctx, k); err != nil {
			t.log.Warn("rollback delete failed", Fields{"tx": t.id, "key": k, "err": err})
			t.hooks.RollbackDeleteError(t.id, k, err)
		}
	}
	if len(t.touched) > 0 {
		t.log.Debug("rolled back", Fields{"tx": t.id, "invalidated": len(t.touched)})
	}
	t.reset()
}

// Close is the mandatory terminal check. Closing with deferred work still
// queued is a caller bug and returns ErrDanglingTx (after discarding the
// work). An owned backend is closed either way; Close is terminal, so the
// dangling fault must not leak the client.
func (t *Tx) Close(ctx context.Context) error {
	var dangling error
	if pending := len(t.deferred); pending > 0 {
		t.log.Error("transaction closed with uncommitted writes", Fields{
			"tx": t.id, "pending": pending,
		})
		t.hooks.DanglingTx(t.id, pending)
		t.reset()
		dangling = fmt.Errorf("%w (%d deferred actions)", ErrDanglingTx, pending)
	}
	if t.closeBackend {
		if err := t.backend.Close(ctx); err != nil && dangling == nil {
			return err
		}
	}
	return dangling
}

func (t *Tx) markTouched(keys []string) {
	for _, k := range keys {
		if _, dup := t.touchedSet[k]; dup {
			continue
		}
		t.touchedSet[k] = struct{}{}
		t.touched = append(t.touched, k)
	}
}

// reset clears all transaction-local state and starts a fresh generation.
// The token counter is NOT reset: a stale token from a finished transaction
// must never alias a new snapshot.
func (t *Tx) reset() {
	t.deferred = t.deferred[:0]
	clear(t.tokens)
	t.touched = t.touched[:0]
	clear(t.touchedSet)
	t.buf.Flush()
	t.suspendReads = false
	t.id = uuid.NewString()
}

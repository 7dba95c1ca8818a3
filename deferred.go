package txcache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// snapshot is a by-value capture of what a read observed, bound to a Token.
// The fingerprint is compared first; bytes settle hash collisions.
type snapshot struct {
	sum   uint64
	value []byte
}

func snapshotOf(v []byte) snapshot {
	return snapshot{sum: xxhash.Sum64(v), value: append([]byte(nil), v...)}
}

func (s snapshot) equal(v []byte) bool {
	return s.sum == xxhash.Sum64(v) && bytes.Equal(s.value, v)
}

type actionKind uint8

const (
	actionSet actionKind = iota + 1
	actionSetMulti
	actionDelete
	actionTouch
	actionCAS
	actionIncr
	actionDecr
	actionFlush
)

func (k actionKind) String() string {
	switch k {
	case actionSet:
		return "set"
	case actionSetMulti:
		return "setMulti"
	case actionDelete:
		return "delete"
	case actionTouch:
		return "touch"
	case actionCAS:
		return "cas"
	case actionIncr:
		return "increment"
	case actionDecr:
		return "decrement"
	case actionFlush:
		return "flush"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// action is one deferred backend write: an explicit tagged variant, not a
// captured closure, so the replay loop dispatches on a visible enum and the
// log can be inspected and logged.
type action struct {
	kind actionKind
	keys []string // affected keys; nil for flush

	value []byte            // set, cas
	items map[string][]byte // setMulti

	ttl             time.Duration
	offset, initial int64 // increment, decrement

	snap snapshot // cas: what the issuing read observed
}

// replay applies a single deferred action against the backend.
// (false, nil) means the backend rejected the action; any rejection or error
// aborts the commit.
func (t *Tx) replay(ctx context.Context, a action) (bool, error) {
	switch a.kind {
	case actionSet:
		return t.backend.Set(ctx, a.keys[0], a.value, a.ttl)

	case actionSetMulti:
		res, err := t.backend.SetMulti(ctx, a.items, a.ttl)
		if err != nil {
			return false, err
		}
		for _, k := range a.keys {
			if !res[k] {
				return false, nil
			}
		}
		return true, nil

	case actionDelete:
		// Existence was already settled against the buffer when the delete
		// was queued; a backend miss here is not a failure.
		if _, err := t.backend.Delete(ctx, a.keys[0]); err != nil {
			return false, err
		}
		return true, nil

	case actionTouch:
		return t.backend.Touch(ctx, a.keys[0], a.ttl)

	case actionCAS:
		// Resolve a live backend token now; the token the caller held was
		// transaction-local and means nothing to the backend. The swap only
		// goes through if the backend still holds what the issuing read saw.
		cur, tok, ok, err := t.backend.Get(ctx, a.keys[0])
		if err != nil {
			return false, err
		}
		if !ok || !a.snap.equal(cur) {
			return false, nil
		}
		return t.backend.CompareAndSwap(ctx, tok, a.keys[0], a.value, a.ttl)

	case actionIncr:
		_, ok, err := t.backend.Increment(ctx, a.keys[0], a.offset, a.initial, a.ttl)
		return ok, err

	case actionDecr:
		_, ok, err := t.backend.Decrement(ctx, a.keys[0], a.offset, a.initial, a.ttl)
		return ok, err

	case actionFlush:
		return t.backend.Flush(ctx)
	}
	return false, fmt.Errorf("txcache: unknown deferred action kind %d", a.kind)
}

// Package txcache implements a write-buffering transaction layer in front of a
// remote key/value cache. Writes performed inside a transaction are applied to
// an in-process buffer immediately (so later reads in the same transaction see
// them) and replayed against the real backend only at Commit, in original
// order. A replay failure truncates the replay, deletes every key the commit
// attempt already wrote, and fails the whole transaction.
//
// Components:
//   - Backend: the real store (Redis, BigCache, in-process reference impl).
//   - buffer.Buffer: never-evicting local store with explicit tombstones,
//     authoritative for every key it has an opinion about.
//   - Tx: deferred-action log, transaction-local CAS tokens, commit/rollback.
//
// CAS tokens returned by Tx.Get are transaction-local handles bound to a value
// snapshot, not backend tokens: the backend's own token is only obtained (and
// re-validated) at commit time, immediately before the real compare-and-swap.
//
// Typical use:
//
//	tx, _ := txcache.New(txcache.Options{Backend: be})
//	_, _ = tx.Set(ctx, "a", []byte("1"), 0)
//	v, tok, _, _ := tx.Get(ctx, "a")
//	_, _ = tx.CompareAndSwap(ctx, tok, "a", []byte("2"), 0)
//	if err := tx.Commit(ctx); err != nil {
//	    // backend state already invalidated; retry or surface
//	}
//	_ = tx.Close(ctx)
//
// A Tx is single-owner: it holds no internal lock across operations and must
// not be shared between goroutines without external synchronization.
package txcache

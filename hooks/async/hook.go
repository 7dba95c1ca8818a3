// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/txcache"
//	asynchook "github.com/unkn0wn-root/txcache/hooks/async"
//	"github.com/unkn0wn-root/txcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SuspendedReadEvery: 10, // sample: ~every 10th suspended-read miss
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	tx, _ := txcache.New(txcache.Options{
//	    Backend: be,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/txcache"
)

type Hooks struct {
	inner txcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ txcache.Hooks = (*Hooks)(nil)

func New(inner txcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) ReplayFailed(txID, op string, keys []string, err error) {
	h.try(func() { h.inner.ReplayFailed(txID, op, keys, err) })
}
func (h *Hooks) RollbackDeleteError(txID, key string, err error) {
	h.try(func() { h.inner.RollbackDeleteError(txID, key, err) })
}
func (h *Hooks) DanglingTx(txID string, pending int) {
	h.try(func() { h.inner.DanglingTx(txID, pending) })
}
func (h *Hooks) SuspendedReadMiss(txID, key string) {
	h.try(func() { h.inner.SuspendedReadMiss(txID, key) })
}
func (h *Hooks) CommitApplied(txID string, actions int) {
	h.try(func() { h.inner.CommitApplied(txID, actions) })
}

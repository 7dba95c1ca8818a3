// Package sloghooks logs transaction hook events through log/slog, with
// sampling on the event that can flood (suspended-read misses) and key
// redaction for sinks that must not see raw cache keys.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/txcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SuspendedReadEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	suspendedCtr atomic.Uint64
}

var _ txcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) redactAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = h.redact(k)
	}
	return out
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ReplayFailed(txID, op string, keys []string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("txcache.replay_failed",
		"tx", txID,
		"op", op,
		"keys", h.redactAll(keys),
		"err", err)
}

func (h *Hooks) RollbackDeleteError(txID, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("txcache.rollback_delete_error",
		"tx", txID,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) DanglingTx(txID string, pending int) {
	if h.l == nil {
		return
	}
	h.l.Error("txcache.dangling_tx",
		"tx", txID,
		"pending", pending)
}

func (h *Hooks) SuspendedReadMiss(txID, key string) {
	if h.l == nil || !sample(h.opts.SuspendedReadEvery, &h.suspendedCtr) {
		return
	}
	h.l.Debug("txcache.suspended_read_miss",
		"tx", txID,
		"key", h.redact(key))
}

func (h *Hooks) CommitApplied(txID string, actions int) {
	if h.l == nil {
		return
	}
	h.l.Debug("txcache.commit_applied",
		"tx", txID,
		"actions", actions)
}

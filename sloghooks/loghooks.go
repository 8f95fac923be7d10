package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LazyRemovalEvery uint64
	StaleMemberEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lazyCtr  atomic.Uint64
	staleCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

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

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntryCorrupt(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.entry_corrupt",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) LazyRemoval(key string) {
	if h.l == nil || !sample(h.opts.LazyRemovalEvery, &h.lazyCtr) {
		return
	}
	h.l.Debug("tagcache.lazy_removal",
		"key", h.redact(key))
}

func (h *Hooks) StaleTagMember(tag, key string) {
	if h.l == nil || !sample(h.opts.StaleMemberEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("tagcache.stale_tag_member",
		"tag", tag,
		"key", h.redact(key))
}

func (h *Hooks) IndexUpdateFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.index_update_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SweepCompleted(endpoint string, scanned, removed int) {
	if h.l == nil {
		return
	}
	h.l.Info("tagcache.sweep_completed",
		"endpoint", endpoint,
		"scanned", scanned,
		"removed", removed)
}

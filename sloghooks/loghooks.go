// Package sloghooks reports assetcache.Hooks events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	StateEvery    uint64
	SelectedEvery uint64
	// Optional id redactor. Defaults to a BLAKE3 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	stateCtr    atomic.Uint64
	selectedCtr atomic.Uint64
}

var _ assetcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(id string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(id)
	}
	return util.HashName(id)[:16]
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StateChanged(id string, s assetcache.State) {
	if h.l == nil || !sample(h.opts.StateEvery, &h.stateCtr) {
		return
	}
	h.l.Debug("assetcache.state",
		"id", h.redact(id),
		"state", s.String())
}

func (h *Hooks) BackendSelected(id string, class assetcache.Class, priority int, hit bool) {
	if h.l == nil || !sample(h.opts.SelectedEvery, &h.selectedCtr) {
		return
	}
	h.l.Debug("assetcache.backend_selected",
		"id", h.redact(id),
		"class", class.String(),
		"priority", priority,
		"hit", hit)
}

func (h *Hooks) PropagationFailed(id, backend string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("assetcache.propagation_failed",
		"id", h.redact(id),
		"backend", backend,
		"err", err)
}

func (h *Hooks) FetchAborted(id string) {
	if h.l == nil {
		return
	}
	h.l.Info("assetcache.fetch_aborted", "id", h.redact(id))
}

func (h *Hooks) RemoveFailed(id, backend string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("assetcache.remove_failed",
		"id", h.redact(id),
		"backend", backend,
		"err", err)
}

func (h *Hooks) CopyFailed(id, reason string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("assetcache.copy_failed",
		"id", h.redact(id),
		"reason", reason,
		"err", err)
}

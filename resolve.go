package assetcache

import (
	"context"
	"errors"
	"sync/atomic"
)

// resolve runs the read path: select, fetch, optionally propagate. l may be nil.
func (m *Manager) resolve(ctx context.Context, id string, l Listener, cache bool) *Asset {
	m.hooks.StateChanged(id, StatePending)
	regs := m.reg.snapshot()

	m.hooks.StateChanged(id, StateSelecting)
	src := m.strategy.SelectRead(ctx, regs, id)
	if src == nil {
		m.hooks.BackendSelected(id, 0, 0, false)
		m.log.Debug("asset not found", Fields{"id": id, "backends": len(regs)})
		if l != nil {
			l.Notify(id, nil)
		}
		m.hooks.StateChanged(id, StateCompleted)
		return nil
	}
	m.hooks.BackendSelected(id, classOf(regs, src), src.Priority(), true)

	m.hooks.StateChanged(id, StateFetching)
	var a *Asset
	tl := track(l)
	if tl != nil {
		once := NotifyOnce(tl)
		a = src.Get(ctx, id, once)
		once.Notify(id, a) // no-op when the backend already notified
	} else {
		a = src.Get(ctx, id, nil)
	}

	if tl != nil && tl.aborted.Load() {
		m.log.Info("fetch aborted by listener", Fields{"id": id, "backend": describe(src)})
		m.hooks.FetchAborted(id)
		m.hooks.StateChanged(id, StateAborted)
		return nil
	}

	if cache && a != nil {
		m.hooks.StateChanged(id, StatePropagating)
		m.propagate(ctx, regs, src, id, a)
	}
	m.hooks.StateChanged(id, StateCompleted)
	return a
}

func (m *Manager) create(ctx context.Context, a *Asset, l Listener, cache bool) {
	regs := m.reg.snapshot()
	dst := m.strategy.SelectCreate(regs, a)
	if dst == nil {
		m.log.Warn("no backend can create asset", Fields{"type": typeName(a), "format": a.Format()})
		if l != nil {
			l.Notify("", nil)
		}
		return
	}

	id, err := dst.Create(ctx, a)
	if err != nil || id == "" {
		m.log.Error("create failed", Fields{"backend": describe(dst), "type": typeName(a), "err": err})
		if l != nil {
			l.Notify("", nil)
		}
		return
	}
	m.log.Debug("asset created", Fields{"id": id, "backend": describe(dst)})
	if l != nil {
		l.Notify(id, a)
	}
	if cache {
		m.propagate(ctx, regs, dst, id, a)
	}
}

func (m *Manager) copyOne(ctx context.Context, id string, dst Backend, l Listener, update bool) {
	notify := func(id string, a *Asset) {
		if l != nil {
			l.Notify(id, a)
		}
	}
	if id == "" {
		m.hooks.CopyFailed(id, "miss", ErrEmptyID)
		notify(id, nil)
		return
	}

	a := m.resolve(ctx, id, nil, false)
	switch {
	case a == nil:
		m.log.Warn("copy: asset not found", Fields{"id": id})
		m.hooks.CopyFailed(id, "miss", nil)
		notify(id, nil)
		return
	case a.Corrupt():
		m.log.Warn("copy: asset not decodable", Fields{"id": id})
		m.hooks.CopyFailed(id, "corrupt", nil)
		notify(id, a)
		return
	}

	// An id dst already has is only overwritten on request; otherwise dst gets
	// a second copy under a fresh id. A missing id is stored under its own id.
	if dst.Has(ctx, id) && !update {
		newID, err := dst.Create(ctx, a)
		if err != nil {
			m.log.Error("copy: create failed", Fields{"id": id, "backend": describe(dst), "err": err})
			m.hooks.CopyFailed(id, "create", err)
		} else {
			id = newID
		}
	} else if err := dst.Update(ctx, id, a); err != nil {
		m.log.Error("copy: update failed", Fields{"id": id, "backend": describe(dst), "err": err})
		m.hooks.CopyFailed(id, "update", err)
	}
	notify(id, a)
}

// propagate pushes a into every cache target. Failures are logged and
// otherwise ignored: the next read misses and self-heals.
func (m *Manager) propagate(ctx context.Context, regs []Registration, src Backend, id string, a *Asset) {
	for _, b := range m.strategy.CacheTargets(regs, src, a) {
		if err := b.Cache(ctx, id, a); err != nil {
			name := describe(b)
			m.log.Warn("cache propagation failed", Fields{"id": id, "backend": name, "err": err})
			m.hooks.PropagationFailed(id, name, err)
		}
	}
}

// trackingListener records whether the caller's listener asked to cancel.
type trackingListener struct {
	Listener
	aborted atomic.Bool
}

func track(l Listener) *trackingListener {
	if l == nil {
		return nil
	}
	return &trackingListener{Listener: l}
}

func (t *trackingListener) NotifyPartial(id string, ratio float64) Progress {
	p := t.Listener.NotifyPartial(id, ratio)
	if p == Cancel {
		t.aborted.Store(true)
	}
	return p
}

func classOf(regs []Registration, b Backend) Class {
	for _, reg := range regs {
		if reg.Backend == b {
			return reg.Class
		}
	}
	return 0
}

func typeName(a *Asset) string {
	if t := a.Type(); t != nil {
		return t.String()
	}
	return "<nil>"
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

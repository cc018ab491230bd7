// Package asynchook moves assetcache.Hooks calls off the request path.
//
// Events are queued to a fixed set of workers and dropped when the queue is
// full, so a slow inner implementation never stalls a fetch.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{StateEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	m, _ := assetcache.New(assetcache.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/assetcache"
)

type Hooks struct {
	inner   assetcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards q against send-after-close
	closed  bool
	dropped atomic.Uint64
}

var _ assetcache.Hooks = (*Hooks)(nil)

func New(inner assetcache.Hooks, workers, qlen int) *Hooks {
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

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) StateChanged(id string, s assetcache.State) {
	h.try(func() { h.inner.StateChanged(id, s) })
}
func (h *Hooks) BackendSelected(id string, c assetcache.Class, p int, hit bool) {
	h.try(func() { h.inner.BackendSelected(id, c, p, hit) })
}
func (h *Hooks) PropagationFailed(id, b string, err error) {
	h.try(func() { h.inner.PropagationFailed(id, b, err) })
}
func (h *Hooks) FetchAborted(id string) { h.try(func() { h.inner.FetchAborted(id) }) }
func (h *Hooks) RemoveFailed(id, b string, err error) {
	h.try(func() { h.inner.RemoveFailed(id, b, err) })
}
func (h *Hooks) CopyFailed(id, r string, err error) {
	h.try(func() { h.inner.CopyFailed(id, r, err) })
}

package assetcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/assetcache/internal/workpool"
)

// Manager owns the registered backends and the worker pool that runs every
// asynchronous operation.
type Manager struct {
	reg      *registry
	strategy Strategy
	log      Logger
	hooks    Hooks
	pool     *workpool.Pool

	closeOnce sync.Once
}

func newManager(opts Options) (*Manager, error) {
	if opts.MaxWorkers < 0 {
		return nil, fmt.Errorf("assetcache: MaxWorkers must be >= 0, got %d", opts.MaxWorkers)
	}
	m := &Manager{reg: newRegistry()}
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.strategy = coalesce[Strategy](opts.Strategy, DefaultStrategy{Order: DefaultClassOrder})
	m.pool = workpool.New(opts.MaxWorkers, func(v any) {
		m.log.Error("async task panicked", Fields{"panic": v})
	})
	return m, nil
}

// Register adds b under class with its current priority. Registering the
// same instance again refreshes class and priority, which is how a
// SetPriority on a registered backend is applied. A nil backend is ignored.
// A priority already held by another backend is a configuration error
// (ErrDuplicatePriority).
func (m *Manager) Register(b Backend, class Class) error {
	if b == nil {
		return nil
	}
	if class == 0 {
		return fmt.Errorf("assetcache: register %s: class is required", describe(b))
	}
	if err := m.reg.add(b, class); err != nil {
		return err
	}
	m.log.Debug("backend registered", Fields{"backend": describe(b), "class": class.String(), "priority": b.Priority()})
	return nil
}

// MustRegister is like Register but panics on a configuration error.
func (m *Manager) MustRegister(b Backend, class Class) {
	if err := m.Register(b, class); err != nil {
		panic(err)
	}
}

// Deregister removes b. Unknown and nil backends are ignored.
func (m *Manager) Deregister(b Backend) {
	if b == nil {
		return
	}
	if m.reg.remove(b) {
		m.log.Debug("backend deregistered", Fields{"backend": describe(b)})
	}
}

// Backends returns the registered backends, highest priority first.
func (m *Manager) Backends() []Registration {
	return append([]Registration(nil), m.reg.snapshot()...)
}

// GetAsset resolves id on the calling goroutine. A miss is (nil, nil). With
// cache set, the result is propagated to every other cache-capable backend.
func (m *Manager) GetAsset(ctx context.Context, id string, cache bool) (*Asset, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	return m.resolve(ctx, id, nil, cache), nil
}

// GetAssetAsync resolves id on the worker pool and returns immediately. l, if
// non-nil, receives exactly one Notify on a worker goroutine.
func (m *Manager) GetAssetAsync(ctx context.Context, id string, l Listener, cache bool) error {
	if id == "" {
		return ErrEmptyID
	}
	return m.schedule(ctx, func(ctx context.Context) {
		m.resolve(ctx, id, l, cache)
	})
}

// CreateAsset stores a in the highest-priority origin backend able to create
// its type, on the worker pool. The new id is only reported through l as
// Notify(id, a); a failed create is reported as Notify("", nil). With cache
// set, the new asset is propagated to every cache-capable backend.
func (m *Manager) CreateAsset(ctx context.Context, a *Asset, l Listener, cache bool) error {
	if a == nil {
		return ErrNilAsset
	}
	return m.schedule(ctx, func(ctx context.Context) {
		m.create(ctx, a, l, cache)
	})
}

// RemoveAsset removes id from every backend that claims it can. It returns nil
// only when all of them succeed; a *RemoveError lists the failures.
// Successful removals are not rolled back.
func (m *Manager) RemoveAsset(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	var failures []BackendError
	for _, reg := range m.reg.snapshot() {
		b := reg.Backend
		if !b.CanRemove(ctx, id) {
			continue
		}
		if err := b.Remove(ctx, id); err != nil {
			name := describe(b)
			m.log.Warn("remove failed", Fields{"id": id, "backend": name, "err": err})
			m.hooks.RemoveFailed(id, name, err)
			failures = append(failures, BackendError{Backend: name, Priority: b.Priority(), Err: err})
		}
	}
	if len(failures) > 0 {
		return &RemoveError{ID: id, Failures: failures}
	}
	return nil
}

// CopyAssets resolves each id without caching and stores it in dst, one id at
// a time on the worker pool. An id that dst already has is updated in place
// when update is set; otherwise a new asset is created in dst and the listener
// sees the minted id. l receives one Notify per id, with a nil asset for a
// miss. Per-id failures are logged and never stop the batch.
func (m *Manager) CopyAssets(ctx context.Context, ids []string, dst Backend, l Listener, update bool) error {
	if dst == nil {
		return ErrNilBackend
	}
	ids = append([]string(nil), ids...)
	return m.schedule(ctx, func(ctx context.Context) {
		for _, id := range ids {
			m.copyOne(ctx, id, dst, l, update)
		}
	})
}

// Wait blocks until all scheduled work finished. Do not call it concurrently
// with methods that schedule work.
func (m *Manager) Wait() { m.pool.Wait() }

// Close stops accepting asynchronous work, waits for running tasks and closes
// every registered backend implementing Closer.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	m.closeOnce.Do(func() {
		m.pool.Close()
		for _, reg := range m.reg.snapshot() {
			c, ok := reg.Backend.(Closer)
			if !ok {
				continue
			}
			if err := c.Close(ctx); err != nil {
				errs = append(errs, BackendError{Backend: describe(reg.Backend), Priority: reg.Backend.Priority(), Err: err})
			}
		}
	})
	return joinErrors(errs)
}

func (m *Manager) schedule(ctx context.Context, f func(ctx context.Context)) error {
	if err := m.pool.Go(ctx, f); err != nil {
		return ErrClosed
	}
	return nil
}

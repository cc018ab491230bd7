package assetcache

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registration is a registered backend, its capability class and the
// priority it had when registered. Ordering uses Priority, so a later
// SetPriority only takes effect when the backend is registered again.
type Registration struct {
	Backend  Backend
	Class    Class
	Priority int
}

// registry is a copy-on-write set of backends sorted by descending priority.
// Readers load a snapshot and never see a partial update.
type registry struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[[]Registration]
}

func newRegistry() *registry {
	r := &registry{}
	empty := []Registration{}
	r.snap.Store(&empty)
	return r
}

func (r *registry) snapshot() []Registration { return *r.snap.Load() }

func (r *registry) add(b Backend, class Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prio := b.Priority()
	cur := r.snapshot()
	next := make([]Registration, 0, len(cur)+1)
	for _, reg := range cur {
		if reg.Backend == b {
			continue
		}
		if reg.Priority == prio {
			return fmt.Errorf("%w: %s and %s both have priority %d",
				ErrDuplicatePriority, describe(reg.Backend), describe(b), prio)
		}
		next = append(next, reg)
	}
	next = append(next, Registration{Backend: b, Class: class, Priority: prio})
	sortRegistrations(next)
	r.snap.Store(&next)
	return nil
}

func (r *registry) remove(b Backend) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	for i, reg := range cur {
		if reg.Backend != b {
			continue
		}
		next := make([]Registration, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		r.snap.Store(&next)
		return true
	}
	return false
}

// sortRegistrations orders by descending priority. Priorities are unique, so
// the order is total.
func sortRegistrations(regs []Registration) {
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Priority > regs[j].Priority
	})
}

package assetcache

import (
	"context"
	"sort"
)

// Strategy decides which backend serves a read, which backend accepts a
// create, and which backends receive a propagated copy.
type Strategy interface {
	// SelectRead returns the backend that serves id, or nil when none has it.
	SelectRead(ctx context.Context, regs []Registration, id string) Backend
	// SelectCreate returns the origin backend that stores a new asset, or nil.
	SelectCreate(regs []Registration, a *Asset) Backend
	// CacheTargets returns every backend other than source that should cache a.
	CacheTargets(regs []Registration, source Backend, a *Asset) []Backend
}

// DefaultStrategy groups backends by class (Order, fastest first) and tries
// them in descending priority within a class.
//
// With AllowOverride unset, the first backend that has the id serves it and
// populated caches are sticky. With AllowOverride set, every later backend that
// has the id and implements Overrider is asked WantOverride; a true answer
// moves the selection to it.
type DefaultStrategy struct {
	Order         []Class
	AllowOverride bool
}

var _ Strategy = DefaultStrategy{}

func (s DefaultStrategy) SelectRead(ctx context.Context, regs []Registration, id string) Backend {
	var selected Backend
	for _, reg := range s.ordered(regs) {
		if selected == nil {
			if reg.Backend.Has(ctx, id) {
				selected = reg.Backend
				if !s.AllowOverride {
					return selected
				}
			}
			continue
		}
		o, ok := reg.Backend.(Overrider)
		if !ok {
			continue
		}
		if reg.Backend.Has(ctx, id) && o.WantOverride(ctx, id) {
			selected = reg.Backend
		}
	}
	return selected
}

func (s DefaultStrategy) SelectCreate(regs []Registration, a *Asset) Backend {
	if a == nil {
		return nil
	}
	t := a.Type()
	if t == nil {
		return nil
	}
	for _, reg := range byPriority(regs) {
		if reg.Class.Origin() && reg.Backend.CanCreate(t) {
			return reg.Backend
		}
	}
	return nil
}

func (s DefaultStrategy) CacheTargets(regs []Registration, source Backend, a *Asset) []Backend {
	if a == nil || a.Corrupt() {
		return nil
	}
	var out []Backend
	for _, reg := range regs {
		if reg.Backend == source {
			continue
		}
		if reg.Backend.CanCache(a) {
			out = append(out, reg.Backend)
		}
	}
	return out
}

// ordered returns regs grouped by class order, each group by descending
// priority. Classes missing from the order go last.
func (s DefaultStrategy) ordered(regs []Registration) []Registration {
	order := s.Order
	if len(order) == 0 {
		order = DefaultClassOrder
	}
	rank := make(map[Class]int, len(order))
	for i, c := range order {
		rank[c] = i
	}
	rankOf := func(c Class) int {
		if r, ok := rank[c]; ok {
			return r
		}
		return len(order)
	}

	out := append([]Registration(nil), regs...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rankOf(out[i].Class), rankOf(out[j].Class)
		if ri != rj {
			return ri < rj
		}
		return out[i].Priority > out[j].Priority
	})
	return out
}

func byPriority(regs []Registration) []Registration {
	out := append([]Registration(nil), regs...)
	sortRegistrations(out)
	return out
}

package assetcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// fakeBackend is an in-memory backend that records every call.
type fakeBackend struct {
	Base
	name      string
	mu        sync.Mutex
	items     map[string]*Asset
	cacheable bool
	creatable bool
	override  bool
	removeErr error
	nextID    int

	cacheCalls  []string
	updateCalls []string
	createCalls int
	getCalls    int
}

func newFake(name string, prio int) *fakeBackend {
	f := &fakeBackend{name: name, items: make(map[string]*Asset)}
	f.SetPriority(prio)
	return f
}

func (f *fakeBackend) String() string { return f.name }

func (f *fakeBackend) put(id string, a *Asset) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = a
	return f
}

func (f *fakeBackend) Has(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	return ok
}

func (f *fakeBackend) Get(_ context.Context, id string, l Listener) *Asset {
	f.mu.Lock()
	f.getCalls++
	a := f.items[id]
	f.mu.Unlock()
	if l != nil {
		l.Notify(id, a)
	}
	return a
}

func (f *fakeBackend) CanCache(*Asset) bool { return f.cacheable }

func (f *fakeBackend) Cache(_ context.Context, id string, a *Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheCalls = append(f.cacheCalls, id)
	f.items[id] = a
	return nil
}

func (f *fakeBackend) CanCreate(t reflect.Type) bool { return f.creatable && t != nil }

func (f *fakeBackend) Create(_ context.Context, a *Asset) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.creatable {
		return "", ErrNotSupported
	}
	f.createCalls++
	f.nextID++
	id := fmt.Sprintf("%s-%d", f.name, f.nextID)
	f.items[id] = a
	return id, nil
}

func (f *fakeBackend) Update(_ context.Context, id string, a *Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, id)
	f.items[id] = a
	return nil
}

func (f *fakeBackend) CanRemove(_ context.Context, id string) bool { return f.Has(context.Background(), id) }

func (f *fakeBackend) Remove(_ context.Context, id string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return errors.New("not found")
	}
	delete(f.items, id)
	return nil
}

func (f *fakeBackend) WantOverride(context.Context, string) bool { return f.override }

func (f *fakeBackend) calls() (cache, update []string, creates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cacheCalls...), append([]string(nil), f.updateCalls...), f.createCalls
}

// collector records listener callbacks in order.
type collector struct {
	mu       sync.Mutex
	events   []string
	notified map[string]*Asset
	ids      []string
	done     chan struct{}
	want     int
}

func newCollector(want int) *collector {
	return &collector{notified: make(map[string]*Asset), done: make(chan struct{}), want: want}
}

func (c *collector) Notify(id string, a *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "notify:"+id)
	c.notified[id] = a
	c.ids = append(c.ids, id)
	if len(c.ids) == c.want {
		close(c.done)
	}
}

func (c *collector) NotifyPartial(id string, _ float64) Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "partial:"+id)
	return Continue
}

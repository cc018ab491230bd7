// Package memcache is an in-process asset cache that holds assets weakly.
//
// Entries live only as long as something else references the asset. Has pins
// a live entry for a short grace window so that a Get following a successful
// Has cannot miss because the collector ran in between.
package memcache

import (
	"context"
	"reflect"
	"sync"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/assetcache"
)

type Options struct {
	// Grace is how long a pin taken by Has survives without a Get.
	// Default: assetcache.DefaultPinGrace.
	Grace time.Duration

	Logger assetcache.Logger
}

type Cache struct {
	assetcache.Base

	mu      sync.Mutex
	entries map[string]weak.Pointer[assetcache.Asset]
	pins    *pinSet
	log     assetcache.Logger
}

var _ assetcache.Backend = (*Cache)(nil)

func New(opts Options) *Cache {
	grace := opts.Grace
	if grace <= 0 {
		grace = assetcache.DefaultPinGrace
	}
	return &Cache{
		entries: make(map[string]weak.Pointer[assetcache.Asset]),
		pins:    newPinSet(grace),
		log:     assetcache.LoggerOrNop(opts.Logger),
	}
}

func (c *Cache) String() string { return "memcache" }

// lookup returns the live asset for id and forgets collected entries.
func (c *Cache) lookup(id string) *assetcache.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()

	wp, ok := c.entries[id]
	if !ok {
		return nil
	}
	a := wp.Value()
	if a == nil {
		delete(c.entries, id)
	}
	return a
}

// Has reports whether id is live and pins it until the next Get or the end of
// the grace window.
func (c *Cache) Has(_ context.Context, id string) bool {
	a := c.lookup(id)
	if a == nil {
		return false
	}
	c.pins.acquire(id, a)
	return true
}

// Get returns the cached asset and consumes the pin taken by Has.
func (c *Cache) Get(_ context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	a := c.lookup(id)
	c.pins.release(id)
	if l != nil {
		l.Notify(id, a)
	}
	return a
}

func (c *Cache) CanCache(a *assetcache.Asset) bool { return a != nil }

func (c *Cache) Cache(_ context.Context, id string, a *assetcache.Asset) error {
	if a == nil {
		return assetcache.ErrNilAsset
	}
	c.mu.Lock()
	c.entries[id] = weak.Make(a)
	c.mu.Unlock()
	c.log.Debug("memcache store", assetcache.Fields{"id": id})
	return nil
}

func (c *Cache) CanCreate(reflect.Type) bool { return true }

func (c *Cache) Create(ctx context.Context, a *assetcache.Asset) (string, error) {
	id := uuid.NewString()
	if err := c.Cache(ctx, id, a); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Cache) Update(ctx context.Context, id string, a *assetcache.Asset) error {
	return c.Cache(ctx, id, a)
}

func (c *Cache) CanRemove(_ context.Context, id string) bool {
	return c.lookup(id) != nil
}

// Remove forgets id and drops its pin, so Has is false immediately.
func (c *Cache) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	c.pins.release(id)
	return nil
}

// Clear drops every entry and pin.
func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
	c.pins.clear()
	c.log.Info("memcache cleared", nil)
}

// Len is the number of tracked entries, collected ones included until the
// next lookup notices them.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

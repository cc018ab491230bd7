// Package kvcache caches assets in a provider.Provider byte store such as
// ristretto, bigcache or redis.
//
// Entries carry the generation of their id at write time. Remove bumps the
// generation before deleting, so copies written earlier by other replicas
// that share the generation store read as misses and are deleted on sight.
package kvcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/genstore"
	"github.com/unkn0wn-root/assetcache/internal/assetio"
	"github.com/unkn0wn-root/assetcache/internal/util"
	"github.com/unkn0wn-root/assetcache/internal/wire"
	"github.com/unkn0wn-root/assetcache/provider"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// ErrRejected is returned by Cache when the provider refused the write,
// typically under memory pressure.
var ErrRejected = errors.New("assetcache: write rejected by provider")

// CostFunc reports the cost charged to cost-aware providers for one entry.
type CostFunc func(id string, framed []byte) int64

type Options[V any] struct {
	// Namespace isolates this cache inside a shared provider. Required.
	Namespace string

	Provider provider.Provider // required

	// Codec for payloads. Default: deterministic CBOR.
	Codec codec.Codec[V]

	// GenStore holds removal generations. Default: in-process store with
	// periodic cleanup. Share a genstore.Redis between replicas.
	GenStore genstore.GenStore

	// TTL per entry; 0 keeps entries until evicted.
	TTL time.Duration

	// ComputeCost defaults to the framed size in bytes.
	ComputeCost CostFunc

	// Name is reported by String; default "kvcache(<namespace>)".
	Name string

	Logger assetcache.Logger
}

type Cache[V any] struct {
	assetcache.Base

	ns    string
	name  string
	p     provider.Provider
	codec codec.Codec[V]
	gen   genstore.GenStore
	ttl   time.Duration
	cost  CostFunc
	log   assetcache.Logger
}

var (
	_ assetcache.Backend = (*Cache[[]byte])(nil)
	_ assetcache.Closer  = (*Cache[[]byte])(nil)
)

func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Provider == nil {
		return nil, errors.New("kvcache: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("kvcache: namespace is required")
	}

	c := &Cache[V]{
		ns:    opts.Namespace,
		p:     opts.Provider,
		codec: opts.Codec,
		ttl:   opts.TTL,
		gen:   opts.GenStore,
		cost:  opts.ComputeCost,
		log:   assetcache.LoggerOrNop(opts.Logger),
	}
	c.name = opts.Name
	if c.name == "" {
		c.name = "kvcache(" + c.ns + ")"
	}
	if c.codec == nil {
		cb, err := codec.NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		c.codec = cb
	}
	if c.cost == nil {
		c.cost = func(_ string, b []byte) int64 { return int64(len(b)) }
	}
	if c.gen == nil {
		c.gen = genstore.NewLocal(defaultSweep, defaultGenRetention)
	}
	return c, nil
}

func (c *Cache[V]) String() string { return c.name }

func (c *Cache[V]) key(id string) string { return util.StorageKey(c.ns, id) }

// Has validates the frame and its generation but leaves the payload
// encoded. A hit is fetched again by Get: the provider contract has no
// existence probe, and a bare key check would claim ids whose frame is
// stale, hiding lower backends that hold a valid copy.
func (c *Cache[V]) Has(ctx context.Context, id string) bool {
	_, ok := c.fetch(ctx, id)
	return ok
}

func (c *Cache[V]) Get(ctx context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	a := c.load(ctx, id)
	if l != nil {
		l.Notify(id, a)
	}
	return a
}

// fetch returns the current frame of id, deleting frames that are broken or
// from an older generation.
func (c *Cache[V]) fetch(ctx context.Context, id string) (wire.Entry, bool) {
	k := c.key(id)
	raw, ok, err := c.p.Get(ctx, k)
	if err != nil {
		c.log.Warn("kvcache get failed", assetcache.Fields{"id": id, "err": err})
		return wire.Entry{}, false
	}
	if !ok {
		return wire.Entry{}, false
	}

	e, err := wire.Decode(raw)
	if err != nil {
		_ = c.p.Del(ctx, k) // self-heal corrupt
		return wire.Entry{}, false
	}
	if e.Gen != c.snapshotGen(ctx, k) {
		_ = c.p.Del(ctx, k)
		return wire.Entry{}, false
	}
	return e, true
}

func (c *Cache[V]) load(ctx context.Context, id string) *assetcache.Asset {
	e, ok := c.fetch(ctx, id)
	if !ok {
		return nil
	}
	a, err := assetio.Decode(c.codec, e.Payload, e.Format)
	if err != nil {
		c.log.Warn("kvcache decode failed", assetcache.Fields{"id": id, "err": err})
	}
	return a
}

func (c *Cache[V]) CanCache(a *assetcache.Asset) bool { return assetio.Accepts[V](a) }

func (c *Cache[V]) Cache(ctx context.Context, id string, a *assetcache.Asset) error {
	k := c.key(id)
	b, err := assetio.EncodeFrame(c.codec, c.snapshotGen(ctx, k), a)
	if err != nil {
		return err
	}
	ok, err := c.p.Set(ctx, k, b, c.cost(id, b), c.ttl)
	if err != nil {
		return fmt.Errorf("kvcache: set %q: %w", id, err)
	}
	if !ok {
		c.log.Debug("kvcache write rejected by provider (pressure)", assetcache.Fields{"id": id})
		return ErrRejected
	}
	return nil
}

func (c *Cache[V]) Update(ctx context.Context, id string, a *assetcache.Asset) error {
	return c.Cache(ctx, id, a)
}

func (c *Cache[V]) CanRemove(ctx context.Context, id string) bool { return c.Has(ctx, id) }

// Remove bumps the generation of id and deletes the local entry.
func (c *Cache[V]) Remove(ctx context.Context, id string) error {
	k := c.key(id)
	g, err := c.gen.Bump(ctx, k)
	if err != nil {
		c.log.Error("gen bump error", assetcache.Fields{"id": id, "err": err})
		return fmt.Errorf("kvcache: bump %q: %w", id, err)
	}
	if err := c.p.Del(ctx, k); err != nil {
		return fmt.Errorf("kvcache: del %q: %w", id, err)
	}
	c.log.Debug("kvcache removed (bumped gen + cleared entry)", assetcache.Fields{"id": id, "newGen": g})
	return nil
}

// Close closes the generation store, then the provider.
func (c *Cache[V]) Close(ctx context.Context) error {
	return errors.Join(c.gen.Close(ctx), c.p.Close(ctx))
}

func (c *Cache[V]) snapshotGen(ctx context.Context, k string) uint64 {
	g, err := c.gen.Snapshot(ctx, k)
	if err != nil {
		// treated as 0: reads of newer entries then self-heal
		c.log.Warn("gen snapshot error", assetcache.Fields{"key": k, "err": err})
		return 0
	}
	return g
}

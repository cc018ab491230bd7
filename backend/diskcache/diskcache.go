// Package diskcache keeps encoded assets in a local directory and prunes it
// by least recent access.
//
// Every asset is one file named after the BLAKE3 digest of its id. Files hold
// the framed codec bytes together with the format hint, so reads restore the
// asset exactly as it was cached.
package diskcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/internal/assetio"
	"github.com/unkn0wn-root/assetcache/internal/util"
	"github.com/unkn0wn-root/assetcache/progress"
)

const ext = ".asset"

type Options[V any] struct {
	// Dir is created when missing. Required.
	Dir string

	// Codec for payloads. Default: deterministic CBOR.
	Codec codec.Codec[V]

	// NotifyInterval is the progress tick for reads.
	// Default: assetcache.DefaultNotifyInterval.
	NotifyInterval time.Duration

	// DisableTouch skips bumping the access time on reads. Leave it unset on
	// noatime mounts or Prune degrades to insertion order.
	DisableTouch bool

	Logger assetcache.Logger
}

type Cache[V any] struct {
	assetcache.Base

	dir      string
	codec    codec.Codec[V]
	interval time.Duration
	touch    bool
	log      assetcache.Logger

	mu sync.Mutex // serializes writes, removals and Prune
}

func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Dir == "" {
		return nil, errors.New("diskcache: directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskcache: %w", err)
	}
	c := opts.Codec
	if c == nil {
		cb, err := codec.NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		c = cb
	}
	interval := opts.NotifyInterval
	if interval <= 0 {
		interval = assetcache.DefaultNotifyInterval
	}
	return &Cache[V]{
		dir:      opts.Dir,
		codec:    c,
		interval: interval,
		touch:    !opts.DisableTouch,
		log:      assetcache.LoggerOrNop(opts.Logger),
	}, nil
}

var _ assetcache.Backend = (*Cache[[]byte])(nil)

func (c *Cache[V]) String() string { return "diskcache(" + c.dir + ")" }

func (c *Cache[V]) Dir() string { return c.dir }

func (c *Cache[V]) path(id string) string {
	return filepath.Join(c.dir, util.HashName(id)+ext)
}

func (c *Cache[V]) Has(_ context.Context, id string) bool {
	fi, err := os.Stat(c.path(id))
	return err == nil && fi.Mode().IsRegular()
}

func (c *Cache[V]) Get(_ context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	a := c.read(id, l)
	if l != nil {
		l.Notify(id, a)
	}
	return a
}

func (c *Cache[V]) read(id string, l assetcache.Listener) *assetcache.Asset {
	p := c.path(id)
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		c.log.Warn("diskcache open failed", assetcache.Fields{"id": id, "err": err})
		return nil
	}
	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	b, aborted, err := progress.ReadAll(id, size, f, l, progress.WithInterval(c.interval))
	if aborted {
		return nil
	}
	if err != nil {
		c.log.Warn("diskcache read failed", assetcache.Fields{"id": id, "err": err})
		return nil
	}
	if c.touch {
		c.touchFile(p)
	}

	_, a, err := assetio.DecodeFrame(c.codec, b)
	if err != nil {
		c.log.Warn("diskcache decode failed", assetcache.Fields{"id": id, "err": err})
	}
	return a
}

// touchFile marks p as accessed now and keeps its modification time.
func (c *Cache[V]) touchFile(p string) {
	fi, err := os.Stat(p)
	if err != nil {
		return
	}
	if err := os.Chtimes(p, time.Now(), fi.ModTime()); err != nil {
		c.log.Debug("diskcache touch failed", assetcache.Fields{"path": p, "err": err})
	}
}

func (c *Cache[V]) CanCache(a *assetcache.Asset) bool { return assetio.Accepts[V](a) }

func (c *Cache[V]) Cache(_ context.Context, id string, a *assetcache.Asset) error {
	b, err := assetio.EncodeFrame(c.codec, 0, a)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := util.WriteFileAtomic(c.dir, c.path(id), b); err != nil {
		c.log.Error("diskcache write failed", assetcache.Fields{"id": id, "err": err})
		return err
	}
	c.log.Debug("diskcache store", assetcache.Fields{"id": id, "bytes": len(b)})
	return nil
}

func (c *Cache[V]) Update(ctx context.Context, id string, a *assetcache.Asset) error {
	return c.Cache(ctx, id, a)
}

func (c *Cache[V]) CanRemove(ctx context.Context, id string) bool { return c.Has(ctx, id) }

func (c *Cache[V]) Remove(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type entry struct {
	name  string
	size  int64
	atime time.Time
}

func (c *Cache[V]) entries() ([]entry, error) {
	des, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(des))
	for _, de := range des {
		if !de.Type().IsRegular() || !strings.HasSuffix(de.Name(), ext) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue // removed concurrently
		}
		out = append(out, entry{
			name:  de.Name(),
			size:  fi.Size(),
			atime: accessTime(filepath.Join(c.dir, de.Name()), fi),
		})
	}
	return out, nil
}

// Size is the total byte size of the cached files.
func (c *Cache[V]) Size() (int64, error) {
	es, err := c.entries()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range es {
		total += e.size
	}
	return total, nil
}

// Prune deletes the least recently accessed files until the cache holds at
// most target bytes, and returns how many files it removed. Files that fail
// to delete are logged and skipped. Prune never runs on its own.
func (c *Cache[V]) Prune(target int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	es, err := c.entries()
	if err != nil {
		return 0, fmt.Errorf("diskcache: prune: %w", err)
	}
	slices.SortFunc(es, func(a, b entry) int {
		if n := a.atime.Compare(b.atime); n != 0 {
			return n
		}
		return strings.Compare(a.name, b.name)
	})

	var total int64
	for _, e := range es {
		total += e.size
	}

	removed := 0
	for _, e := range es {
		if total <= target {
			break
		}
		if err := os.Remove(filepath.Join(c.dir, e.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("diskcache prune skip", assetcache.Fields{"file": e.name, "err": err})
			continue
		}
		total -= e.size
		removed++
	}
	c.log.Info("diskcache pruned", assetcache.Fields{"removed": removed, "bytes": total, "target": target})
	return removed, nil
}

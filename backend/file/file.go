// Package file serves assets from a local directory that carries an index
// file mapping asset ids to file names.
//
// Files hold plain codec bytes in the asset's own format; the extension of
// the file name is the format hint. New assets are named "<uuid>.<format>".
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/internal/assetio"
	"github.com/unkn0wn-root/assetcache/internal/index"
	"github.com/unkn0wn-root/assetcache/internal/util"
	"github.com/unkn0wn-root/assetcache/progress"
)

// IndexName is the index file inside the directory.
const IndexName = "index"

type Options[V any] struct {
	// Dir is created when missing. Required.
	Dir string

	Codec codec.Codec[V] // required

	// NotifyInterval default: assetcache.DefaultNotifyInterval.
	NotifyInterval time.Duration

	Logger assetcache.Logger
}

type Store[V any] struct {
	assetcache.Base

	dir      string
	codec    codec.Codec[V]
	interval time.Duration
	log      assetcache.Logger

	mu  sync.Mutex // serializes index read-modify-write with file writes
	idx *index.Index
}

var _ assetcache.Backend = (*Store[[]byte])(nil)

func New[V any](opts Options[V]) (*Store[V], error) {
	if opts.Dir == "" {
		return nil, errors.New("file: directory is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("file: codec is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	idx, err := index.Load(filepath.Join(opts.Dir, IndexName))
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	return &Store[V]{
		dir:      opts.Dir,
		codec:    opts.Codec,
		interval: coalesceInterval(opts.NotifyInterval),
		log:      assetcache.LoggerOrNop(opts.Logger),
		idx:      idx,
	}, nil
}

func coalesceInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return assetcache.DefaultNotifyInterval
	}
	return d
}

func (s *Store[V]) String() string { return "file(" + s.dir + ")" }

// IDs lists the indexed asset ids in sorted order.
func (s *Store[V]) IDs() []string { return s.idx.Keys() }

func (s *Store[V]) Has(_ context.Context, id string) bool { return s.idx.Has(id) }

func (s *Store[V]) Get(_ context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	a := s.read(id, l)
	if l != nil {
		l.Notify(id, a)
	}
	return a
}

func (s *Store[V]) read(id string, l assetcache.Listener) *assetcache.Asset {
	name, ok := s.idx.Get(id)
	if !ok {
		return nil
	}
	format := FormatOf(name)

	s.log.Info("file load start", assetcache.Fields{"id": id, "file": name})
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		// indexed but unreadable
		s.log.Warn("file open failed", assetcache.Fields{"id": id, "err": err})
		return assetcache.Corrupted(format)
	}
	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	b, aborted, err := progress.ReadAll(id, size, f, l, progress.WithInterval(s.interval))
	if aborted {
		return nil
	}
	if err != nil {
		s.log.Warn("file read failed", assetcache.Fields{"id": id, "err": err})
		return assetcache.Corrupted(format)
	}
	a, err := assetio.Decode(s.codec, b, format)
	if err != nil {
		s.log.Warn("file decode failed", assetcache.Fields{"id": id, "err": err})
	}
	s.log.Info("file load done", assetcache.Fields{"id": id, "bytes": len(b)})
	return a
}

func (s *Store[V]) CanCreate(t reflect.Type) bool {
	return t != nil && t == reflect.TypeFor[V]()
}

func (s *Store[V]) Create(_ context.Context, a *assetcache.Asset) (string, error) {
	if err := assetcache.CheckFormat(a.Format()); err != nil {
		return "", err
	}
	b, err := assetio.Encode(s.codec, a)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(id, id+"."+a.Format(), b); err != nil {
		s.log.Warn("file create failed", assetcache.Fields{"err": err})
		return "", err
	}
	return id, nil
}

// Update rewrites the file of a known id in place, or adds the id under a
// name derived from its hash.
func (s *Store[V]) Update(_ context.Context, id string, a *assetcache.Asset) error {
	if err := assetcache.CheckFormat(a.Format()); err != nil {
		return err
	}
	b, err := assetio.Encode(s.codec, a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.idx.Get(id)
	if !ok {
		name = util.HashName(id) + "." + a.Format()
	}
	if err := s.write(id, name, b); err != nil {
		s.log.Warn("file update failed", assetcache.Fields{"id": id, "err": err})
		return err
	}
	return nil
}

// write stores b as name and indexes id; s.mu must be held.
func (s *Store[V]) write(id, name string, b []byte) error {
	if err := util.WriteFileAtomic(s.dir, filepath.Join(s.dir, name), b); err != nil {
		return err
	}
	prev, had := s.idx.Get(id)
	s.idx.Set(id, name)
	if err := s.idx.Save(filepath.Join(s.dir, IndexName)); err != nil {
		if had {
			s.idx.Set(id, prev)
		} else {
			s.idx.Delete(id)
		}
		return err
	}
	s.log.Info("file stored", assetcache.Fields{"id": id, "file": name})
	return nil
}

func (s *Store[V]) CanRemove(_ context.Context, id string) bool { return s.idx.Has(id) }

// Remove drops id from the index, then deletes its file.
func (s *Store[V]) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.idx.Delete(id)
	if !ok {
		return fmt.Errorf("file: %q not indexed", id)
	}
	if err := s.idx.Save(filepath.Join(s.dir, IndexName)); err != nil {
		s.idx.Set(id, name)
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// FormatOf is the format hint carried by a stored name: its extension
// without the dot, or the default format.
func FormatOf(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return assetcache.DefaultFormat
	}
	return ext
}

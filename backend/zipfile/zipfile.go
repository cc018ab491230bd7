// Package zipfile serves assets from a zip archive that carries an "index"
// entry mapping asset ids to entry names.
//
// Writes rebuild the archive next to the original and rename it into place,
// so concurrent readers in other processes never see a half-written file.
package zipfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/internal/assetio"
	"github.com/unkn0wn-root/assetcache/internal/index"
	"github.com/unkn0wn-root/assetcache/internal/util"
	"github.com/unkn0wn-root/assetcache/progress"
)

// IndexEntry is the name of the index inside the archive.
const IndexEntry = "index"

type Options[V any] struct {
	// Path of the archive. An empty archive is created when missing. Required.
	Path string

	Codec codec.Codec[V] // required

	// Stored writes new entries uncompressed. Already compressed formats
	// such as PNG gain nothing from deflate.
	Stored bool

	// NotifyInterval default: assetcache.DefaultNotifyInterval.
	NotifyInterval time.Duration

	Logger assetcache.Logger
}

type Archive[V any] struct {
	assetcache.Base

	path     string
	codec    codec.Codec[V]
	method   uint16
	interval time.Duration
	log      assetcache.Logger

	mu  sync.RWMutex // writers rebuild the archive; readers hold it open
	idx *index.Index
}

var _ assetcache.Backend = (*Archive[[]byte])(nil)

func New[V any](opts Options[V]) (*Archive[V], error) {
	if opts.Path == "" {
		return nil, errors.New("zipfile: path is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("zipfile: codec is required")
	}
	a := &Archive[V]{
		path:     opts.Path,
		codec:    opts.Codec,
		method:   zip.Deflate,
		interval: opts.NotifyInterval,
		log:      assetcache.LoggerOrNop(opts.Logger),
		idx:      index.New(),
	}
	if opts.Stored {
		a.method = zip.Store
	}
	if a.interval <= 0 {
		a.interval = assetcache.DefaultNotifyInterval
	}

	_, err := os.Stat(a.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
			return nil, fmt.Errorf("zipfile: %w", err)
		}
		if err := a.rewrite(nil, ""); err != nil {
			return nil, fmt.Errorf("zipfile: create: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("zipfile: %w", err)
	default:
		if err := a.loadIndex(); err != nil {
			return nil, fmt.Errorf("zipfile: %w", err)
		}
	}
	return a, nil
}

func (a *Archive[V]) String() string { return "zipfile(" + a.path + ")" }

// IDs lists the indexed asset ids in sorted order.
func (a *Archive[V]) IDs() []string { return a.idx.Keys() }

func (a *Archive[V]) loadIndex() error {
	zr, err := zip.OpenReader(a.path)
	if err != nil {
		return err
	}
	defer zr.Close()

	f := lookup(&zr.Reader, IndexEntry)
	if f == nil {
		return fmt.Errorf("%s has no %s entry", a.path, IndexEntry)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	idx, err := index.Read(rc)
	if err != nil {
		return err
	}
	a.idx = idx
	return nil
}

func lookup(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (a *Archive[V]) Has(_ context.Context, id string) bool { return a.idx.Has(id) }

func (a *Archive[V]) Get(_ context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	res := a.read(id, l)
	if l != nil {
		l.Notify(id, res)
	}
	return res
}

func (a *Archive[V]) read(id string, l assetcache.Listener) *assetcache.Asset {
	name, ok := a.idx.Get(id)
	if !ok {
		return nil
	}
	format := formatOf(name)

	a.mu.RLock()
	defer a.mu.RUnlock()

	zr, err := zip.OpenReader(a.path)
	if err != nil {
		a.log.Warn("zipfile open failed", assetcache.Fields{"id": id, "err": err})
		return nil
	}
	defer zr.Close()

	f := lookup(&zr.Reader, name)
	if f == nil {
		a.log.Warn("zipfile entry missing", assetcache.Fields{"id": id, "entry": name})
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		a.log.Warn("zipfile entry open failed", assetcache.Fields{"id": id, "err": err})
		return nil
	}
	b, aborted, err := progress.ReadAll(id, int64(f.UncompressedSize64), rc, l, progress.WithInterval(a.interval))
	if aborted {
		return nil
	}
	if err != nil {
		a.log.Warn("zipfile read failed", assetcache.Fields{"id": id, "err": err})
		return assetcache.Corrupted(format)
	}
	res, err := assetio.Decode(a.codec, b, format)
	if err != nil {
		a.log.Warn("zipfile decode failed", assetcache.Fields{"id": id, "err": err})
	}
	return res
}

func (a *Archive[V]) CanCreate(t reflect.Type) bool {
	return t != nil && t == reflect.TypeFor[V]()
}

func (a *Archive[V]) Create(_ context.Context, as *assetcache.Asset) (string, error) {
	if err := assetcache.CheckFormat(as.Format()); err != nil {
		return "", err
	}
	b, err := assetio.Encode(a.codec, as)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.put(id, id+"."+as.Format(), b); err != nil {
		a.log.Warn("zipfile create failed", assetcache.Fields{"err": err})
		return "", err
	}
	return id, nil
}

func (a *Archive[V]) Update(_ context.Context, id string, as *assetcache.Asset) error {
	if err := assetcache.CheckFormat(as.Format()); err != nil {
		return err
	}
	b, err := assetio.Encode(a.codec, as)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	name, ok := a.idx.Get(id)
	if !ok {
		name = util.HashName(id) + "." + as.Format()
	}
	if err := a.put(id, name, b); err != nil {
		a.log.Warn("zipfile update failed", assetcache.Fields{"id": id, "err": err})
		return err
	}
	return nil
}

// put indexes id as name and rebuilds the archive with b; a.mu must be held.
func (a *Archive[V]) put(id, name string, b []byte) error {
	prev, had := a.idx.Get(id)
	a.idx.Set(id, name)
	if err := a.rewrite(map[string][]byte{name: b}, ""); err != nil {
		if had {
			a.idx.Set(id, prev)
		} else {
			a.idx.Delete(id)
		}
		return err
	}
	a.log.Info("zipfile stored", assetcache.Fields{"id": id, "entry": name})
	return nil
}

func (a *Archive[V]) CanRemove(_ context.Context, id string) bool { return a.idx.Has(id) }

func (a *Archive[V]) Remove(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name, ok := a.idx.Delete(id)
	if !ok {
		return fmt.Errorf("zipfile: %q not indexed", id)
	}
	if err := a.rewrite(nil, name); err != nil {
		a.idx.Set(id, name)
		return err
	}
	return nil
}

// rewrite builds a new archive holding the current entries minus drop, with
// put replacing or adding entries and a fresh index, then renames it over
// the old one.
func (a *Archive[V]) rewrite(put map[string][]byte, drop string) error {
	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".zip-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := zip.NewWriter(tmp)
	if err := a.copyEntries(w, put, drop); err != nil {
		tmp.Close()
		return err
	}
	for name, b := range put {
		if err := a.writeEntry(w, name, bytes.NewReader(b)); err != nil {
			tmp.Close()
			return err
		}
	}
	var ib bytes.Buffer
	if _, err := a.idx.WriteTo(&ib); err != nil {
		tmp.Close()
		return err
	}
	if err := a.writeEntry(w, IndexEntry, &ib); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), a.path)
}

func (a *Archive[V]) copyEntries(w *zip.Writer, put map[string][]byte, drop string) error {
	zr, err := zip.OpenReader(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == IndexEntry || f.Name == drop {
			continue
		}
		if _, replaced := put[f.Name]; replaced {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		dst, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
		if err == nil {
			_, err = io.Copy(dst, rc)
		}
		rc.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	return nil
}

func (a *Archive[V]) writeEntry(w *zip.Writer, name string, r io.Reader) error {
	dst, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: a.method, Modified: time.Now()})
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

func formatOf(name string) string {
	if ext := filepath.Ext(name); len(ext) > 1 {
		return ext[1:]
	}
	return assetcache.DefaultFormat
}

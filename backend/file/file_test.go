package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/internal/index"
)

func newStore(t *testing.T, dir string) *Store[[]byte] {
	t.Helper()
	s, err := New(Options[[]byte]{Dir: dir, Codec: codec.Bytes{}, NotifyInterval: time.Millisecond})
	require.NoError(t, err)
	return s
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newStore(t, dir)
	a := assetcache.NewAsset([]byte("\x89PNG..."), "png")

	require.True(t, s.CanCreate(a.Type()))
	id, err := s.Create(ctx, a)
	require.NoError(t, err)
	require.True(t, s.Has(ctx, id))

	got := s.Get(ctx, id, nil)
	assert.True(t, a.Equal(got))
	assert.Equal(t, "png", got.Format())

	_, err = os.Stat(filepath.Join(dir, id+".png"))
	assert.NoError(t, err)

	// a second instance sees the persisted index
	again := newStore(t, dir)
	assert.True(t, again.Has(ctx, id))
	assert.Equal(t, []string{id}, again.IDs())
}

func TestUpdateReusesName(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newStore(t, dir)

	id, err := s.Create(ctx, assetcache.NewAsset([]byte("v1"), "txt"))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, id, assetcache.NewAsset([]byte("v2"), "txt")))

	got := s.Get(ctx, id, nil)
	assert.Equal(t, []byte("v2"), got.Payload())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one asset file plus the index")
}

func TestUpdateUnknownIDInserts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, t.TempDir())
	require.NoError(t, s.Update(ctx, "http://host/x.png", assetcache.NewAsset([]byte("x"), "png")))
	assert.True(t, s.Has(ctx, "http://host/x.png"))
	assert.Equal(t, []byte("x"), s.Get(ctx, "http://host/x.png", nil).Payload())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newStore(t, dir)
	id, err := s.Create(ctx, assetcache.NewAsset([]byte("gone"), "bin"))
	require.NoError(t, err)

	require.True(t, s.CanRemove(ctx, id))
	require.NoError(t, s.Remove(ctx, id))
	assert.False(t, s.Has(ctx, id))
	assert.Error(t, s.Remove(ctx, id))

	_, err = os.Stat(filepath.Join(dir, id+".bin"))
	assert.True(t, os.IsNotExist(err))

	ix, err := index.Load(filepath.Join(dir, IndexName))
	require.NoError(t, err)
	assert.Zero(t, ix.Len())
}

func TestIndexedButMissingFileIsCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexName), []byte("logo=logo.png\n"), 0o644))
	s := newStore(t, dir)

	got := s.Get(ctx, "logo", nil)
	require.NotNil(t, got)
	assert.True(t, got.Corrupt())
	assert.Equal(t, "png", got.Format())
	assert.Nil(t, s.Get(ctx, "unknown", nil))
}

type cancelAll struct{ notified []*assetcache.Asset }

func (c *cancelAll) Notify(_ string, a *assetcache.Asset) { c.notified = append(c.notified, a) }
func (c *cancelAll) NotifyPartial(string, float64) assetcache.Progress {
	return assetcache.Cancel
}

func TestCancelledReadNotifiesNil(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newStore(t, dir)
	id, err := s.Create(ctx, assetcache.NewAsset(bytes.Repeat([]byte("z"), 1<<20), "bin"))
	require.NoError(t, err)

	s.interval = time.Nanosecond
	l := &cancelAll{}
	got := s.Get(ctx, id, l)
	if got != nil {
		t.Skip("read finished before the first tick")
	}
	require.Len(t, l.notified, 1)
	assert.Nil(t, l.notified[0])
}

func TestCanCreateByType(t *testing.T) {
	s := newStore(t, t.TempDir())
	assert.True(t, s.CanCreate(reflect.TypeFor[[]byte]()))
	assert.False(t, s.CanCreate(reflect.TypeFor[string]()))
	assert.False(t, s.CanCreate(nil))
	assert.False(t, s.CanCache(assetcache.NewAsset([]byte("x"), "")), "origins do not cache")
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "png", FormatOf("a.png"))
	assert.Equal(t, assetcache.DefaultFormat, FormatOf("noext"))
}

func TestFormatCannotLeaveDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	s := newStore(t, dir)

	for _, format := range []string{"/../../escaped", "../x", "a/b", `a\b`, "png..", ".hidden"} {
		_, err := s.Create(ctx, assetcache.NewAsset([]byte("x"), format))
		assert.ErrorIs(t, err, assetcache.ErrInvalidFormat, format)
		err = s.Update(ctx, "logo", assetcache.NewAsset([]byte("x"), format))
		assert.ErrorIs(t, err, assetcache.ErrInvalidFormat, format)
	}

	assert.Empty(t, s.IDs())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, IndexName, e.Name())
	}
}

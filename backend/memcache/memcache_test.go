package memcache

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/assetcache"
)

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(Options{})
	a := assetcache.NewAsset([]byte("pixels"), "png")

	id, err := c.Create(ctx, a)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.True(t, c.Has(ctx, id))
	got := c.Get(ctx, id, nil)
	assert.True(t, a.Equal(got))
	runtime.KeepAlive(a)
}

func TestRemoveClearsHasInsideGrace(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Grace: time.Hour})
	a := assetcache.NewAsset("x", "")
	require.NoError(t, c.Cache(ctx, "k", a))

	require.True(t, c.Has(ctx, "k"))
	assert.Equal(t, 1, c.pins.len())

	require.NoError(t, c.Remove(ctx, "k"))
	assert.False(t, c.Has(ctx, "k"))
	assert.Zero(t, c.pins.len())
	runtime.KeepAlive(a)
}

func TestPinKeepsAssetAliveUntilGet(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Grace: time.Hour})

	func() {
		require.NoError(t, c.Cache(ctx, "k", assetcache.NewAsset([]byte("payload"), "bin")))
	}()
	require.True(t, c.Has(ctx, "k"))
	runtime.GC()
	runtime.GC()

	got := c.Get(ctx, "k", nil)
	require.NotNil(t, got)
	assert.Equal(t, []byte("payload"), got.Payload())
	assert.Zero(t, c.pins.len())
}

func TestUnreferencedEntriesAreCollected(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Grace: 10 * time.Millisecond})

	func() {
		a := assetcache.NewAsset([]byte("transient"), "bin")
		require.NoError(t, c.Cache(ctx, "k", a))
		c.Has(ctx, "k")
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return !c.Has(ctx, "k")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPinExpiresAfterGrace(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Grace: 5 * time.Millisecond})
	a := assetcache.NewAsset(1, "")
	require.NoError(t, c.Cache(ctx, "k", a))
	require.True(t, c.Has(ctx, "k"))

	assert.Eventually(t, func() bool { return c.pins.len() == 0 }, time.Second, 5*time.Millisecond)
	runtime.KeepAlive(a)
}

func TestGetNotifiesListener(t *testing.T) {
	ctx := context.Background()
	c := New(Options{})
	a := assetcache.NewAsset("v", "txt")
	require.NoError(t, c.Update(ctx, "k", a))

	var got []*assetcache.Asset
	l := assetcache.ListenerFuncs{OnNotify: func(id string, a *assetcache.Asset) {
		assert.Equal(t, "k", id)
		got = append(got, a)
	}}
	c.Get(ctx, "k", l)
	c.Get(ctx, "missing", l)

	require.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Nil(t, got[1])
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Grace: time.Hour})
	keep := []*assetcache.Asset{assetcache.NewAsset(1, ""), assetcache.NewAsset(2, "")}
	require.NoError(t, c.Cache(ctx, "a", keep[0]))
	require.NoError(t, c.Cache(ctx, "b", keep[1]))
	c.Has(ctx, "a")

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.pins.len())
	assert.False(t, c.CanRemove(ctx, "a"))
	runtime.KeepAlive(keep)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New(Options{Grace: time.Millisecond})
	keep := assetcache.NewAsset("shared", "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = c.Cache(ctx, "k", keep)
				if c.Has(ctx, "k") {
					c.Get(ctx, "k", nil)
				}
				if j%50 == 0 {
					_ = c.Remove(ctx, "k")
				}
			}
		}()
	}
	wg.Wait()
	runtime.KeepAlive(keep)
}

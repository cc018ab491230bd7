package assetcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func waitFor(t *testing.T, c *collector) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %d notifications", c.want)
	}
}

func TestRegisterDuplicatePriority(t *testing.T) {
	m := newTestManager(t, Options{})
	a := newFake("a", 10)
	b := newFake("b", 10)

	require.NoError(t, m.Register(a, ClassFileOrigin))
	err := m.Register(b, ClassDiskCache)
	require.ErrorIs(t, err, ErrDuplicatePriority)
	assert.Contains(t, err.Error(), "a and b")
	assert.Contains(t, err.Error(), "priority 10")

	assert.Panics(t, func() { m.MustRegister(b, ClassDiskCache) })
	assert.Len(t, m.Backends(), 1)
}

func TestRegisterIdempotentAndNil(t *testing.T) {
	m := newTestManager(t, Options{})
	a := newFake("a", 10)

	require.NoError(t, m.Register(a, ClassFileOrigin))
	require.NoError(t, m.Register(a, ClassFileOrigin))
	require.NoError(t, m.Register(nil, ClassFileOrigin))
	assert.Len(t, m.Backends(), 1)

	m.Deregister(nil)
	m.Deregister(newFake("other", 3))
	assert.Len(t, m.Backends(), 1)

	m.Deregister(a)
	m.Deregister(a)
	assert.Empty(t, m.Backends())
}

func TestSetPriorityAppliesOnReregister(t *testing.T) {
	m := newTestManager(t, Options{})
	a := newFake("a", 10)
	b := newFake("b", 20)
	m.MustRegister(a, ClassDiskCache)
	m.MustRegister(b, ClassDiskCache)

	names := func() (out []string) {
		for _, reg := range m.Backends() {
			out = append(out, reg.Backend.(*fakeBackend).name)
		}
		return out
	}

	// a live change cannot create a silent tie
	a.SetPriority(20)
	assert.Equal(t, []string{"b", "a"}, names())
	assert.Equal(t, 10, m.Backends()[1].Priority)
	require.ErrorIs(t, m.Register(a, ClassDiskCache), ErrDuplicatePriority)
	assert.Equal(t, 10, m.Backends()[1].Priority)

	a.SetPriority(30)
	require.NoError(t, m.Register(a, ClassDiskCache))
	assert.Equal(t, []string{"a", "b"}, names())
	assert.Equal(t, 30, m.Backends()[0].Priority)
	assert.Len(t, m.Backends(), 2)
}

func TestRegisterRequiresClass(t *testing.T) {
	m := newTestManager(t, Options{})
	assert.Error(t, m.Register(newFake("a", 1), 0))
}

func TestBackendsSortedByPriority(t *testing.T) {
	m := newTestManager(t, Options{})
	m.MustRegister(newFake("low", 1), ClassNetworkOrigin)
	m.MustRegister(newFake("high", 100), ClassMemoryCache)
	m.MustRegister(newFake("mid", 50), ClassDiskCache)

	var names []string
	for _, reg := range m.Backends() {
		names = append(names, reg.Backend.(*fakeBackend).name)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, names)
}

func TestGetAssetEmptyID(t *testing.T) {
	m := newTestManager(t, Options{})
	_, err := m.GetAsset(context.Background(), "", true)
	assert.ErrorIs(t, err, ErrEmptyID)
	assert.ErrorIs(t, m.GetAssetAsync(context.Background(), "", nil, true), ErrEmptyID)
	assert.ErrorIs(t, m.RemoveAsset(context.Background(), ""), ErrEmptyID)
}

func TestGetAssetMissDoesNotCache(t *testing.T) {
	m := newTestManager(t, Options{})
	a := newFake("a", 2)
	a.cacheable = true
	b := newFake("b", 1)
	b.cacheable = true
	m.MustRegister(a, ClassMemoryCache)
	m.MustRegister(b, ClassDiskCache)

	for _, id := range []string{"x", "y", "z"} {
		got, err := m.GetAsset(context.Background(), id, true)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	ca, _, _ := a.calls()
	cb, _, _ := b.calls()
	assert.Empty(t, ca)
	assert.Empty(t, cb)
}

func TestGetAssetPriorityAndPropagation(t *testing.T) {
	m := newTestManager(t, Options{})
	va := NewAsset("from-a", "")
	a := newFake("a", 2).put("x", va)
	a.cacheable = true
	b := newFake("b", 1).put("x", NewAsset("from-b", ""))
	b.cacheable = true
	m.MustRegister(a, ClassFileOrigin)
	m.MustRegister(b, ClassFileOrigin)

	got, err := m.GetAsset(context.Background(), "x", true)
	require.NoError(t, err)
	assert.True(t, got.Equal(va))

	ca, _, _ := a.calls()
	cb, _, _ := b.calls()
	assert.Empty(t, ca, "source must not get a redundant write")
	assert.Equal(t, []string{"x"}, cb)
	assert.True(t, b.items["x"].Equal(va))
}

func TestGetAssetWithoutCacheFlagSkipsPropagation(t *testing.T) {
	m := newTestManager(t, Options{})
	origin := newFake("origin", 1).put("x", NewAsset(1, ""))
	mem := newFake("mem", 100)
	mem.cacheable = true
	m.MustRegister(origin, ClassFileOrigin)
	m.MustRegister(mem, ClassMemoryCache)

	got, err := m.GetAsset(context.Background(), "x", false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Payload())
	cm, _, _ := mem.calls()
	assert.Empty(t, cm)
}

func TestGetAssetClassOrderBeatsPriority(t *testing.T) {
	m := newTestManager(t, Options{})
	origin := newFake("origin", 500).put("x", NewAsset("origin", ""))
	disk := newFake("disk", 5).put("x", NewAsset("disk", ""))
	m.MustRegister(origin, ClassNetworkOrigin)
	m.MustRegister(disk, ClassDiskCache)

	got, err := m.GetAsset(context.Background(), "x", false)
	require.NoError(t, err)
	assert.Equal(t, "disk", got.Payload())
}

func TestGetAssetCorruptNotPropagated(t *testing.T) {
	m := newTestManager(t, Options{})
	origin := newFake("origin", 1).put("x", Corrupted("png"))
	mem := newFake("mem", 2)
	mem.cacheable = true
	m.MustRegister(origin, ClassFileOrigin)
	m.MustRegister(mem, ClassMemoryCache)

	got, err := m.GetAsset(context.Background(), "x", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Corrupt())
	cm, _, _ := mem.calls()
	assert.Empty(t, cm)
}

func TestGetAssetAsyncSingleNotify(t *testing.T) {
	m := newTestManager(t, Options{})
	m.MustRegister(newFake("origin", 1).put("x", NewAsset("v", "")), ClassFileOrigin)

	hit := newCollector(1)
	require.NoError(t, m.GetAssetAsync(context.Background(), "x", hit, true))
	miss := newCollector(1)
	require.NoError(t, m.GetAssetAsync(context.Background(), "nope", miss, true))
	waitFor(t, hit)
	waitFor(t, miss)
	m.Wait()

	assert.Equal(t, []string{"notify:x"}, hit.events)
	assert.Equal(t, "v", hit.notified["x"].Payload())
	assert.Equal(t, []string{"notify:nope"}, miss.events)
	assert.Nil(t, miss.notified["nope"])
}

// chattyBackend notifies twice and sends a partial after Notify.
type chattyBackend struct{ *fakeBackend }

func (c chattyBackend) Get(ctx context.Context, id string, l Listener) *Asset {
	a := c.fakeBackend.Get(ctx, id, nil)
	l.NotifyPartial(id, 0.5)
	l.Notify(id, a)
	l.NotifyPartial(id, 0.9)
	l.Notify(id, a)
	return a
}

func TestGetAssetAsyncGuardsMisbehavingBackend(t *testing.T) {
	m := newTestManager(t, Options{})
	m.MustRegister(chattyBackend{newFake("chatty", 1).put("x", NewAsset("v", ""))}, ClassFileOrigin)

	c := newCollector(1)
	require.NoError(t, m.GetAssetAsync(context.Background(), "x", c, false))
	waitFor(t, c)
	m.Wait()
	assert.Equal(t, []string{"partial:x", "notify:x"}, c.events)
}

// cancellingBackend asks for progress once and honours a Cancel like a
// streaming backend would.
type cancellingBackend struct{ *fakeBackend }

func (c cancellingBackend) Get(_ context.Context, id string, l Listener) *Asset {
	l = NotifyOnce(l)
	if l.NotifyPartial(id, 0.1) == Cancel {
		l.Notify(id, nil)
		return nil
	}
	a := c.items[id]
	l.Notify(id, a)
	return a
}

type abortHooks struct {
	NopHooks
	aborted atomic.Int32
	states  sync.Map
}

func (h *abortHooks) FetchAborted(string) { h.aborted.Add(1) }
func (h *abortHooks) StateChanged(id string, s State) {
	if s == StateAborted {
		h.states.Store(id, s)
	}
}

func TestGetAssetAsyncCancellation(t *testing.T) {
	hooks := &abortHooks{}
	m := newTestManager(t, Options{Hooks: hooks})
	mem := newFake("mem", 9)
	mem.cacheable = true
	m.MustRegister(mem, ClassMemoryCache)
	m.MustRegister(cancellingBackend{newFake("origin", 1).put("x", NewAsset("v", ""))}, ClassFileOrigin)

	var got []*Asset
	done := make(chan struct{})
	l := ListenerFuncs{
		OnPartial: func(string, float64) Progress { return Cancel },
		OnNotify: func(_ string, a *Asset) {
			got = append(got, a)
			close(done)
		},
	}
	require.NoError(t, m.GetAssetAsync(context.Background(), "x", l, true))
	<-done
	m.Wait()

	require.Len(t, got, 1)
	assert.Nil(t, got[0], "cancelled fetch ends like a miss")
	assert.Equal(t, int32(1), hooks.aborted.Load())
	_, ok := hooks.states.Load("x")
	assert.True(t, ok)
	cm, _, _ := mem.calls()
	assert.Empty(t, cm)
}

func TestCreateAssetPicksHighestOriginAndPropagates(t *testing.T) {
	m := newTestManager(t, Options{})
	low := newFake("low", 1)
	low.creatable = true
	high := newFake("high", 5)
	high.creatable = true
	memCreatable := newFake("mem", 100) // creatable but not an origin
	memCreatable.creatable = true
	memCreatable.cacheable = true
	m.MustRegister(low, ClassFileOrigin)
	m.MustRegister(high, ClassArchiveOrigin)
	m.MustRegister(memCreatable, ClassMemoryCache)

	c := newCollector(1)
	a := NewAsset([]byte{1, 2, 3}, "bin")
	require.NoError(t, m.CreateAsset(context.Background(), a, c, true))
	waitFor(t, c)
	m.Wait()

	require.Len(t, c.ids, 1)
	id := c.ids[0]
	assert.Equal(t, "high-1", id)
	assert.True(t, c.notified[id].Equal(a))
	_, _, lowCreates := low.calls()
	assert.Zero(t, lowCreates)
	cm, _, memCreates := memCreatable.calls()
	assert.Zero(t, memCreates)
	assert.Equal(t, []string{id}, cm)
}

func TestCreateAssetNoCreator(t *testing.T) {
	m := newTestManager(t, Options{})
	m.MustRegister(newFake("ro", 1), ClassNetworkOrigin)

	c := newCollector(1)
	require.NoError(t, m.CreateAsset(context.Background(), NewAsset("x", ""), c, true))
	waitFor(t, c)
	assert.Equal(t, []string{""}, c.ids)
	assert.Nil(t, c.notified[""])

	assert.ErrorIs(t, m.CreateAsset(context.Background(), nil, nil, true), ErrNilAsset)
}

func TestRemoveAssetAllOrNothingReport(t *testing.T) {
	m := newTestManager(t, Options{})
	a := newFake("a", 3).put("x", NewAsset(1, ""))
	b := newFake("b", 2).put("x", NewAsset(1, ""))
	c := newFake("c", 1).put("x", NewAsset(1, ""))
	b.removeErr = errors.New("disk full")
	untouched := newFake("d", 0)
	m.MustRegister(a, ClassMemoryCache)
	m.MustRegister(b, ClassDiskCache)
	m.MustRegister(c, ClassFileOrigin)
	m.MustRegister(untouched, ClassNetworkOrigin)

	err := m.RemoveAsset(context.Background(), "x")
	var re *RemoveError
	require.ErrorAs(t, err, &re)
	require.Len(t, re.Failures, 1)
	assert.Equal(t, "b", re.Failures[0].Backend)
	assert.Contains(t, err.Error(), "disk full")

	assert.False(t, a.Has(context.Background(), "x"), "successful removals stay removed")
	assert.False(t, c.Has(context.Background(), "x"))
	assert.True(t, b.Has(context.Background(), "x"))

	b.removeErr = nil
	assert.NoError(t, m.RemoveAsset(context.Background(), "x"))
	assert.NoError(t, m.RemoveAsset(context.Background(), "x"), "nothing to remove is success")
}

func TestCopyAssetsCreateThenUpdate(t *testing.T) {
	m := newTestManager(t, Options{})
	src := newFake("src", 5).
		put("id1", NewAsset("one", "")).
		put("id2", NewAsset("two", "")).
		put("id3", NewAsset("three", ""))
	m.MustRegister(src, ClassFileOrigin)
	dst := newFake("dst", 1)
	dst.creatable = true

	ids := []string{"id1", "id2", "id3"}
	first := newCollector(3)
	require.NoError(t, m.CopyAssets(context.Background(), ids, dst, first, false))
	waitFor(t, first)
	m.Wait()

	_, updates, creates := dst.calls()
	assert.Equal(t, ids, updates, "missing ids are stored under their own id")
	assert.Zero(t, creates)
	assert.Equal(t, ids, first.ids)
	for _, id := range ids {
		assert.True(t, dst.Has(context.Background(), id))
	}

	second := newCollector(3)
	require.NoError(t, m.CopyAssets(context.Background(), ids, dst, second, true))
	waitFor(t, second)
	m.Wait()

	_, updates, creates = dst.calls()
	assert.Equal(t, append(append([]string(nil), ids...), ids...), updates)
	assert.Zero(t, creates, "update must not mint new ids")
	assert.Len(t, dst.items, 3)
	assert.Equal(t, ids, second.ids)

	third := newCollector(3)
	require.NoError(t, m.CopyAssets(context.Background(), ids, dst, third, false))
	waitFor(t, third)
	m.Wait()
	_, _, creates = dst.calls()
	assert.Equal(t, 3, creates, "existing ids without update get a fresh copy")
	assert.Equal(t, []string{"dst-1", "dst-2", "dst-3"}, third.ids)
}

func TestCopyAssetsContinuesPastMisses(t *testing.T) {
	m := newTestManager(t, Options{})
	m.MustRegister(newFake("src", 5).put("a", NewAsset(1, "")).put("c", NewAsset(3, "")), ClassFileOrigin)
	dst := newFake("dst", 1)

	c := newCollector(3)
	require.NoError(t, m.CopyAssets(context.Background(), []string{"a", "b", "c"}, dst, c, false))
	waitFor(t, c)
	m.Wait()

	assert.Equal(t, []string{"a", "b", "c"}, c.ids)
	assert.Nil(t, c.notified["b"])
	assert.True(t, dst.Has(context.Background(), "a"))
	assert.True(t, dst.Has(context.Background(), "c"))
	assert.ErrorIs(t, m.CopyAssets(context.Background(), nil, nil, nil, false), ErrNilBackend)
}

func TestCloseRejectsNewWork(t *testing.T) {
	m, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background()))
	assert.ErrorIs(t, m.GetAssetAsync(context.Background(), "x", nil, false), ErrClosed)
	assert.ErrorIs(t, m.CreateAsset(context.Background(), NewAsset(1, ""), nil, false), ErrClosed)
}

func TestConcurrentRegisterAndRead(t *testing.T) {
	m := newTestManager(t, Options{})
	m.MustRegister(newFake("origin", 0).put("x", NewAsset("v", "")), ClassFileOrigin)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(p int) {
			defer wg.Done()
			b := newFake("tmp", p)
			_ = m.Register(b, ClassMemoryCache)
			m.Deregister(b)
		}(i)
		go func() {
			defer wg.Done()
			got, err := m.GetAsset(context.Background(), "x", false)
			assert.NoError(t, err)
			assert.Equal(t, "v", got.Payload())
		}()
	}
	wg.Wait()
}

package httpsrc

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
)

var big = bytes.Repeat([]byte("0123456789abcdef"), 4096)

func newOrigin(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32

	r := chi.NewRouter()
	r.Get("/assets/index", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# origin index\nlogo=img/logo.png\nbig=big.bin\nbroken=missing.png\n"))
	})
	r.Get("/assets/img/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("PNGDATA"))
	})
	r.Get("/assets/big.bin", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(big)))
		fl, _ := w.(http.Flusher)
		for off := 0; off < len(big); off += 4096 {
			_, _ = w.Write(big[off : off+4096])
			if fl != nil {
				fl.Flush()
			}
			time.Sleep(2 * time.Millisecond)
		}
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newSource(t *testing.T, url string) *Source[[]byte] {
	t.Helper()
	s, err := New(context.Background(), Options[[]byte]{
		URL:            url,
		Codec:          codec.Bytes{},
		NotifyInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func TestIndexAndGet(t *testing.T) {
	ctx := context.Background()
	srv, hits := newOrigin(t)
	s := newSource(t, srv.URL+"/assets")

	assert.Equal(t, []string{"big", "broken", "logo"}, s.IDs())
	assert.True(t, s.Has(ctx, "logo"))
	assert.False(t, s.Has(ctx, "other"))

	got := s.Get(ctx, "logo", nil)
	require.NotNil(t, got)
	assert.Equal(t, []byte("PNGDATA"), got.Payload())
	assert.Equal(t, "png", got.Format())
	assert.Equal(t, int32(1), hits.Load())
}

func TestMissingIndexedFileIsCorrupt(t *testing.T) {
	srv, _ := newOrigin(t)
	s := newSource(t, srv.URL+"/assets/")
	got := s.Get(context.Background(), "broken", nil)
	require.NotNil(t, got)
	assert.True(t, got.Corrupt())
}

type recorder struct {
	ratios   []float64
	notified []*assetcache.Asset
	cancel   bool
}

func (r *recorder) Notify(_ string, a *assetcache.Asset) { r.notified = append(r.notified, a) }
func (r *recorder) NotifyPartial(_ string, ratio float64) assetcache.Progress {
	r.ratios = append(r.ratios, ratio)
	if r.cancel {
		return assetcache.Cancel
	}
	return assetcache.Continue
}

func TestProgressFromContentLength(t *testing.T) {
	srv, _ := newOrigin(t)
	s := newSource(t, srv.URL+"/assets")

	rec := &recorder{}
	got := s.Get(context.Background(), "big", rec)
	require.NotNil(t, got)
	assert.Equal(t, big, got.Payload())

	require.NotEmpty(t, rec.ratios)
	for i := 1; i < len(rec.ratios); i++ {
		assert.GreaterOrEqual(t, rec.ratios[i], rec.ratios[i-1])
	}
	assert.LessOrEqual(t, rec.ratios[len(rec.ratios)-1], 1.0)
	require.Len(t, rec.notified, 1)
	assert.Same(t, got, rec.notified[0])
}

func TestCancelDeliversNil(t *testing.T) {
	srv, _ := newOrigin(t)
	s := newSource(t, srv.URL+"/assets")

	rec := &recorder{cancel: true}
	got := s.Get(context.Background(), "big", rec)
	assert.Nil(t, got)
	assert.Len(t, rec.ratios, 1)
	require.Len(t, rec.notified, 1)
	assert.Nil(t, rec.notified[0])
}

func TestReadOnly(t *testing.T) {
	srv, _ := newOrigin(t)
	s := newSource(t, srv.URL+"/assets")
	ctx := context.Background()

	assert.False(t, s.CanCache(assetcache.NewAsset([]byte("x"), "")))
	assert.False(t, s.CanCreate(nil))
	assert.False(t, s.CanRemove(ctx, "logo"))
	_, err := s.Create(ctx, assetcache.NewAsset([]byte("x"), ""))
	assert.ErrorIs(t, err, assetcache.ErrNotSupported)
}

func TestNewFailsWithoutIndex(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, err := New(context.Background(), Options[[]byte]{URL: srv.URL, Codec: codec.Bytes{}})
	assert.Error(t, err)
}

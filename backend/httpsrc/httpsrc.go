// Package httpsrc serves assets from a read-only HTTP origin.
//
// The origin publishes "<root>/index" in the index format; every indexed
// asset lives at "<root>/<name>". The index is fetched once at construction.
// Downloads report progress from the Content-Length header when present.
package httpsrc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/internal/assetio"
	"github.com/unkn0wn-root/assetcache/internal/index"
	"github.com/unkn0wn-root/assetcache/progress"
)

const defaultTimeout = 30 * time.Second

type Options[V any] struct {
	// URL is the origin root. Required.
	URL string

	Codec codec.Codec[V] // required

	// Client default: an http.Client with Timeout.
	Client *http.Client
	// Timeout of the default client. Default 30s.
	Timeout time.Duration

	// NotifyInterval default: assetcache.DefaultNotifyInterval.
	NotifyInterval time.Duration

	Logger assetcache.Logger
}

type Source[V any] struct {
	assetcache.Base

	root     *url.URL
	codec    codec.Codec[V]
	client   *http.Client
	interval time.Duration
	log      assetcache.Logger
	idx      *index.Index
}

var _ assetcache.Backend = (*Source[[]byte])(nil)

func New[V any](ctx context.Context, opts Options[V]) (*Source[V], error) {
	if opts.URL == "" {
		return nil, errors.New("httpsrc: url is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("httpsrc: codec is required")
	}
	raw := opts.URL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	root, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("httpsrc: %w", err)
	}

	s := &Source[V]{
		root:     root,
		codec:    opts.Codec,
		client:   opts.Client,
		interval: opts.NotifyInterval,
		log:      assetcache.LoggerOrNop(opts.Logger),
	}
	if s.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		s.client = &http.Client{Timeout: timeout}
	}
	if s.interval <= 0 {
		s.interval = assetcache.DefaultNotifyInterval
	}
	if err := s.loadIndex(ctx); err != nil {
		return nil, fmt.Errorf("httpsrc: index: %w", err)
	}
	return s, nil
}

func (s *Source[V]) String() string { return "httpsrc(" + s.root.String() + ")" }

// IDs lists the indexed asset ids in sorted order.
func (s *Source[V]) IDs() []string { return s.idx.Keys() }

func (s *Source[V]) resolve(name string) string {
	return s.root.ResolveReference(&url.URL{Path: name}).String()
}

func (s *Source[V]) open(ctx context.Context, name string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resolve(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", req.URL, resp.Status)
	}
	return resp, nil
}

func (s *Source[V]) loadIndex(ctx context.Context) error {
	resp, err := s.open(ctx, "index")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	idx, err := index.Read(resp.Body)
	if err != nil {
		return err
	}
	s.idx = idx
	s.log.Info("httpsrc index loaded", assetcache.Fields{"url": s.root.String(), "assets": idx.Len()})
	return nil
}

func (s *Source[V]) Has(_ context.Context, id string) bool { return s.idx.Has(id) }

func (s *Source[V]) Get(ctx context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	a := s.fetch(ctx, id, l)
	if l != nil {
		l.Notify(id, a)
	}
	return a
}

func (s *Source[V]) fetch(ctx context.Context, id string, l assetcache.Listener) *assetcache.Asset {
	name, ok := s.idx.Get(id)
	if !ok {
		return nil
	}
	format := formatOf(name)

	s.log.Info("httpsrc load start", assetcache.Fields{"id": id, "name": name})
	resp, err := s.open(ctx, name)
	if err != nil {
		s.log.Warn("httpsrc fetch failed", assetcache.Fields{"id": id, "err": err})
		return assetcache.Corrupted(format)
	}
	b, aborted, err := progress.ReadAll(id, max(resp.ContentLength, 0), resp.Body, l, progress.WithInterval(s.interval))
	if aborted {
		s.log.Info("httpsrc load cancelled", assetcache.Fields{"id": id})
		return nil
	}
	if err != nil {
		s.log.Warn("httpsrc read failed", assetcache.Fields{"id": id, "err": err})
		return assetcache.Corrupted(format)
	}
	a, err := assetio.Decode(s.codec, b, format)
	if err != nil {
		s.log.Warn("httpsrc decode failed", assetcache.Fields{"id": id, "err": err})
	}
	s.log.Info("httpsrc load done", assetcache.Fields{"id": id, "bytes": len(b)})
	return a
}

func formatOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 && !strings.ContainsRune(name[i:], '/') {
		return name[i+1:]
	}
	return assetcache.DefaultFormat
}

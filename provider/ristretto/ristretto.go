// Package ristretto adapts dgraph-io/ristretto as an in-process,
// cost-bounded asset store. Cost is the encoded frame size, so MaxCost is a
// byte budget.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/assetcache/provider"
)

var ErrConfig = errors.New("ristretto: NumCounters, MaxCost and BufferItems must be positive")

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	// MaxItemBytes refuses single assets larger than this many bytes. One
	// huge texture would otherwise evict the whole working set. 0 disables.
	MaxItemBytes int
	Metrics      bool
	// Sync waits for each Set to be applied. Ristretto buffers writes, so
	// without it a Get right after Set may miss.
	Sync bool
}

type Provider struct {
	c       *rc.Cache
	maxItem int
	sync    bool
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, ErrConfig
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, maxItem: cfg.MaxItemBytes, sync: cfg.Sync}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	if b, ok := v.([]byte); ok && b != nil {
		return b, true, nil
	}
	p.c.Del(key)
	return nil, false, nil
}

// Set reports ok=false when the value is over MaxItemBytes or ristretto's
// admission policy dropped it.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if p.maxItem > 0 && len(value) > p.maxItem {
		// a stale, smaller copy must not outlive the refused write
		p.c.Del(key)
		return false, nil
	}
	if cost <= 0 {
		cost = int64(len(value))
	}
	if !p.c.SetWithTTL(key, value, cost, ttl) {
		return false, nil
	}
	if p.sync {
		p.c.Wait()
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// HitRatio is the fraction of Gets served since creation, or 0 when Metrics
// was not enabled.
func (p *Provider) HitRatio() float64 {
	if p.c.Metrics == nil {
		return 0
	}
	return p.c.Metrics.Ratio()
}
